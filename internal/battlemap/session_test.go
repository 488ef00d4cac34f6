package battlemap

import (
	"context"
	"errors"
	"testing"
)

func TestExit_IdempotentWithoutSession(t *testing.T) {
	s := newTestSession(newFakeDriver())

	// Neither call may panic or error; there is nothing to tear down.
	s.Exit()
	s.Exit()
}

func TestExit_ClosesBrowserOnce(t *testing.T) {
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)

	s := newTestSession(driver)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	s.Exit()
	s.Exit()

	if driver.closeCount != 1 {
		t.Errorf("closeCount = %d, want 1", driver.closeCount)
	}
	if s.restart != nil {
		t.Error("restart timer survived Exit")
	}
}

func TestInit_ReplacesExistingSession(t *testing.T) {
	first := newFakeDriver()
	first.setVisible(selAuthMarker, true)
	second := newFakeDriver()
	second.setVisible(selAuthMarker, true)

	drivers := []*fakeDriver{first, second}
	s := New(testConfig())
	s.newDriver = func(launchOptions) (pageDriver, error) {
		d := drivers[0]
		drivers = drivers[1:]
		return d, nil
	}

	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	defer s.Exit()

	if first.closeCount != 1 {
		t.Errorf("first browser closeCount = %d, want 1", first.closeCount)
	}
	if second.closeCount != 0 {
		t.Errorf("second browser closed prematurely")
	}
}

func TestScheduledRestart_StaleAfterExit(t *testing.T) {
	launches := 0
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)

	s := New(testConfig())
	s.newDriver = func(launchOptions) (pageDriver, error) {
		launches++
		return driver, nil
	}

	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}

	s.mu.Lock()
	gen := s.restartGen
	s.mu.Unlock()

	s.Exit()

	// A timer that fired before Stop could cancel it arrives here carrying
	// the generation it was armed with; Exit already bumped it.
	s.scheduledRestart(gen)

	if launches != 1 {
		t.Errorf("launches = %d, want 1 (stopped session resurrected)", launches)
	}
	s.mu.Lock()
	if s.page != nil {
		t.Error("page restored after Exit")
	}
	s.mu.Unlock()
}

func TestScheduledRestart_ReplacesLiveSession(t *testing.T) {
	first := newFakeDriver()
	first.setVisible(selAuthMarker, true)
	second := newFakeDriver()
	second.setVisible(selAuthMarker, true)

	drivers := []*fakeDriver{first, second}
	s := New(testConfig())
	s.newDriver = func(launchOptions) (pageDriver, error) {
		d := drivers[0]
		drivers = drivers[1:]
		return d, nil
	}

	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Exit()

	s.mu.Lock()
	gen := s.restartGen
	s.mu.Unlock()

	s.scheduledRestart(gen)

	if first.closeCount != 1 {
		t.Errorf("first browser closeCount = %d, want 1", first.closeCount)
	}
	if second.closeCount != 0 {
		t.Error("replacement browser closed prematurely")
	}
	s.mu.Lock()
	if s.page != second {
		t.Error("session not running on the replacement browser")
	}
	s.mu.Unlock()
}

func TestInit_LaunchFailure(t *testing.T) {
	s := New(testConfig())
	s.newDriver = func(launchOptions) (pageDriver, error) {
		return nil, errors.New("no chromium")
	}

	err := s.Init(context.Background(), nil)
	if !IsKind(err, KindSessionLaunch) {
		t.Fatalf("Init error = %v, want session-launch", err)
	}
}

func TestInit_NavigationFailure(t *testing.T) {
	driver := newFakeDriver()
	driver.navErr = errors.New("dns failure")

	s := newTestSession(driver)
	err := s.Init(context.Background(), nil)
	if !IsKind(err, KindNavigation) {
		t.Fatalf("Init error = %v, want navigation", err)
	}
	if driver.closeCount != 1 {
		t.Errorf("browser not torn down after navigation failure")
	}
}

func TestInit_OverridesCredentials(t *testing.T) {
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)

	s := newTestSession(driver)
	creds := &Credentials{Email: "other@c.com", Password: "y"}
	if err := s.Init(context.Background(), creds); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Exit()

	if s.creds != *creds {
		t.Errorf("creds = %+v, want %+v", s.creds, *creds)
	}
}

func TestCheckHealth(t *testing.T) {
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)
	driver.evalFn = func(js string, args ...interface{}) (interface{}, error) {
		return true, nil
	}

	s := newTestSession(driver)

	if s.CheckHealth() {
		t.Error("CheckHealth = true with no session")
	}

	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Exit()

	if !s.CheckHealth() {
		t.Error("CheckHealth = false with a responsive page")
	}

	driver.evalFn = func(js string, args ...interface{}) (interface{}, error) {
		return nil, errors.New("context deadline exceeded")
	}
	if s.CheckHealth() {
		t.Error("CheckHealth = true with an unresponsive page")
	}
}

func TestEvaluate(t *testing.T) {
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)
	driver.evalFn = func(js string, args ...interface{}) (interface{}, error) {
		return float64(42), nil
	}

	s := newTestSession(driver)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Exit()

	got, err := s.Evaluate(`() => 42`)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got != float64(42) {
		t.Errorf("Evaluate = %v, want 42", got)
	}
}

func TestScreenshot_NoSession(t *testing.T) {
	s := newTestSession(newFakeDriver())
	if err := s.Screenshot("/tmp/x.png"); err == nil {
		t.Error("Screenshot succeeded with no session")
	}
}
