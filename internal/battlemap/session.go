// Package battlemap owns the automated browser session against the
// BattleMap game and is the sole entry point the relay, bot and ETL use to
// reach it. One Session means one browser process and one page; every page
// operation is serialized behind the session mutex, and a scheduled full
// restart bounds long-session drift.
package battlemap

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eneris/battlemap/internal/config"
	. "github.com/eneris/battlemap/internal/logging"
)

// Policy constants. These are contract-level waits, not per-call tunables.
const (
	fieldWait         = 1 * time.Second        // login form fields
	authProbeFirst    = 3 * time.Second        // authenticated marker, first probe
	authProbeFinal    = 5 * time.Second        // authenticated marker, after the flow
	challengeProbe    = 500 * time.Millisecond // challenge marker appearance
	challengeClear    = 15 * time.Second       // challenge resolution (external)
	navTimeout        = 30 * time.Second       // full page loads
	settleTimeout     = 5 * time.Second        // post-submit navigation settle
	apiRequestTimeout = 10 * time.Second       // in-page API calls
	evalTimeout       = 10 * time.Second       // generic Evaluate
	healthTimeout     = 2 * time.Second        // CheckHealth probe
	restartInterval   = 24 * time.Hour         // scheduled full session restart
)

// Credentials is the Google account pair used for the login flow. Held by
// the session for re-authentication.
type Credentials struct {
	Email    string
	Password string
}

// Session owns the browser process and page. At most one browser is alive
// per Session; Init replaces it wholesale and Exit tears it down.
type Session struct {
	cfg   *config.Config
	creds Credentials

	mu      sync.Mutex // serializes page operations and lifecycle transitions
	page    pageDriver
	restart *time.Timer

	// Incremented on every teardown so a restart timer that already fired
	// cannot resurrect a session that was deliberately stopped.
	restartGen uint64

	// Concurrent callers that each hit a 401 share one re-login.
	loginFlight singleflight.Group

	// Pagination safety cap, 0 = unbounded like the game client itself.
	pageCap int

	// Injection point for tests; defaults to newRodDriver.
	newDriver func(launchOptions) (pageDriver, error)
}

// New creates a session controller. No browser is launched until Init.
func New(cfg *config.Config) *Session {
	return &Session{
		cfg: cfg,
		creds: Credentials{
			Email:    cfg.Game.Email,
			Password: cfg.Game.Password,
		},
		newDriver: newRodDriver,
	}
}

// Init tears down any existing session, launches a fresh browser with the
// persistent profile, navigates home and authenticates if the game asks for
// it. On success the scheduled restart is (re)armed. A nil creds reuses the
// stored credentials, which is what the restart timer and the GraphQL
// restart mutation do.
func (s *Session) Init(ctx context.Context, creds *Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx, creds)
}

// initLocked is Init's body. Caller holds s.mu.
func (s *Session) initLocked(ctx context.Context, creds *Credentials) error {
	if creds != nil {
		s.creds = *creds
	}

	s.teardownLocked()

	L_info("session: init", "home", s.cfg.Game.HomeURL)

	driver, err := s.newDriver(launchOptions{
		ProfileDir: s.cfg.ResolveProfileDir(),
		Headless:   s.cfg.Browser.Headless,
		NoSandbox:  s.cfg.Browser.NoSandbox,
	})
	if err != nil {
		return wrapError(KindSessionLaunch, err, "browser launch failed")
	}
	s.page = driver

	if err := driver.Navigate(s.cfg.Game.HomeURL, navTimeout); err != nil {
		s.teardownLocked()
		return wrapError(KindNavigation, err, "failed to load %s", s.cfg.Game.HomeURL)
	}

	if s.loginNeededLocked(authProbeFirst) {
		if err := s.loginLocked(ctx); err != nil {
			s.teardownLocked()
			return err
		}
	} else {
		L_info("session: login recovered from profile cookies")
	}

	gen := s.restartGen
	s.restart = time.AfterFunc(restartInterval, func() { s.scheduledRestart(gen) })
	L_info("session: ready")
	return nil
}

// Exit cancels the pending restart and closes the browser. Idempotent;
// calling it with no live session is a no-op success.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}

// teardownLocked stops the restart timer and closes the browser if one
// exists. Caller holds s.mu.
func (s *Session) teardownLocked() {
	// Stop cannot cancel an AfterFunc that already fired; the generation
	// bump makes such a timer a no-op once it gets the lock.
	s.restartGen++
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			L_warn("session: browser close failed", "error", err)
		}
		s.page = nil
		L_info("session: browser closed")
	}
}

// scheduledRestart replaces the whole session after restartInterval.
// Long-lived browser sessions accumulate memory and cookie drift. A timer
// armed for an earlier generation is stale and does nothing.
func (s *Session) scheduledRestart(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.restartGen {
		L_debug("session: stale restart timer, skipping")
		return
	}
	L_info("session: scheduled restart")
	if err := s.initLocked(context.Background(), nil); err != nil {
		L_error("session: scheduled restart failed", "error", err)
	}
}

// Login runs the interactive flow with the stored credentials. Returns nil
// when the session ends up authenticated, whether or not typing was needed.
func (s *Session) Login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return newError(KindSessionCrash, 0, "no active session")
	}
	return s.loginLocked(ctx)
}

// relogin deduplicates concurrent re-authentication attempts: every caller
// that classified an Unauthorized while a login is already in flight waits
// for that login instead of starting its own.
func (s *Session) relogin(ctx context.Context) error {
	_, err, _ := s.loginFlight.Do("login", func() (interface{}, error) {
		return nil, s.Login(ctx)
	})
	return err
}

// IsLoginNeeded probes for the authenticated marker, waiting up to timeout
// for it to appear. True means the interactive flow is required.
func (s *Session) IsLoginNeeded(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return true
	}
	return s.loginNeededLocked(timeout)
}

// Evaluate executes a snippet in the authenticated page context and returns
// its result verbatim. No retry logic at this level; resilient callers go
// through GetAPIData.
func (s *Session) Evaluate(js string, args ...interface{}) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, newError(KindSessionCrash, 0, "no active session")
	}
	res, err := s.page.Eval(evalTimeout, js, args...)
	if err != nil {
		return nil, wrapError(KindRequestFailed, err, "evaluate failed")
	}
	return res, nil
}

// Screenshot captures the current page as a PNG at path. Diagnostics only,
// never on the success path.
func (s *Session) Screenshot(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return newError(KindSessionCrash, 0, "no active session")
	}
	if err := s.page.Screenshot(path); err != nil {
		return wrapError(KindRequestFailed, err, "screenshot failed")
	}
	return nil
}

// CheckHealth confirms the page's script engine is responsive. Never
// returns an error, an unresponsive page is simply unhealthy.
func (s *Session) CheckHealth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return false
	}
	res, err := s.page.Eval(healthTimeout, `() => true`)
	if err != nil {
		return false
	}
	ok, _ := res.(bool)
	return ok
}

// debugShot captures a diagnostic screenshot into the debug directory when
// diagnostics are enabled. Failures are logged and swallowed, diagnostics
// never influence control flow.
func (s *Session) debugShot(name string) {
	if !s.cfg.DebugEnabled() || s.page == nil {
		return
	}
	path := filepath.Join(s.cfg.ResolveDebugDir(), fmt.Sprintf("%s-%s.png", name, time.Now().Format("20060102-150405")))
	if err := s.page.Screenshot(path); err != nil {
		L_warn("session: debug screenshot failed", "name", name, "error", err)
		return
	}
	L_debug("session: debug screenshot", "path", path)
}
