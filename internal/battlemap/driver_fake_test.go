package battlemap

import (
	"fmt"
	"sync"
	"time"

	"github.com/eneris/battlemap/internal/config"
)

// fakeDriver scripts a DOM for the auth flow and an in-page transport for
// the API tests. Selector visibility is mutable so click handlers can flip
// the page state the way a real navigation would.
type fakeDriver struct {
	mu      sync.Mutex
	visible map[string]bool

	evalFn     func(js string, args ...interface{}) (interface{}, error)
	onClick    func(selector string)
	onNavigate func(url string)

	navigations []string
	inputs      []string
	clicks      []string
	shots       []string
	closeCount  int

	navErr error
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{visible: map[string]bool{}}
}

func (d *fakeDriver) setVisible(selector string, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible[selector] = v
}

func (d *fakeDriver) Navigate(url string, _ time.Duration) error {
	d.mu.Lock()
	d.navigations = append(d.navigations, url)
	err := d.navErr
	onNavigate := d.onNavigate
	d.mu.Unlock()
	if err == nil && onNavigate != nil {
		onNavigate(url)
	}
	return err
}

func (d *fakeDriver) WaitVisible(selector string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.visible[selector] {
		return nil
	}
	return fmt.Errorf("element not found: %s", selector)
}

func (d *fakeDriver) WaitHidden(selector string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.visible[selector] {
		return fmt.Errorf("element still visible: %s", selector)
	}
	return nil
}

func (d *fakeDriver) Input(selector, text string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.visible[selector] {
		return fmt.Errorf("element not found: %s", selector)
	}
	d.inputs = append(d.inputs, selector+"="+text)
	return nil
}

func (d *fakeDriver) Click(selector string, _ time.Duration) error {
	d.mu.Lock()
	if !d.visible[selector] {
		d.mu.Unlock()
		return fmt.Errorf("element not found: %s", selector)
	}
	d.clicks = append(d.clicks, selector)
	onClick := d.onClick
	d.mu.Unlock()
	if onClick != nil {
		onClick(selector)
	}
	return nil
}

func (d *fakeDriver) WaitNavigation(_ time.Duration) {}

func (d *fakeDriver) Eval(_ time.Duration, js string, args ...interface{}) (interface{}, error) {
	d.mu.Lock()
	fn := d.evalFn
	d.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(js, args...)
}

func (d *fakeDriver) Screenshot(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shots = append(d.shots, path)
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeCount++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Game: config.GameConfig{
			HomeURL:  "https://game.example/#home",
			LoginURL: "https://game.example/login/google",
			Email:    "a@b.com",
			Password: "x",
		},
	}
}

// newTestSession wires a session to a scripted driver without launching
// anything.
func newTestSession(driver *fakeDriver) *Session {
	s := New(testConfig())
	s.newDriver = func(launchOptions) (pageDriver, error) {
		return driver, nil
	}
	return s
}

// relayEnvelope builds what relayScript would hand back for a given status.
func relayEnvelope(status int, body interface{}, msg string) map[string]interface{} {
	env := map[string]interface{}{"status": float64(status)}
	if body != nil {
		env["body"] = body
	}
	if msg != "" {
		env["message"] = msg
	}
	return env
}
