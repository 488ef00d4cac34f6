package battlemap

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	. "github.com/eneris/battlemap/internal/logging"
)

// pageDriver is the narrow surface the session needs from a browser page.
// The auth flow and the API transport run against this interface so they can
// be exercised with a fake DOM in tests; rodDriver is the production
// implementation.
type pageDriver interface {
	Navigate(url string, timeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	WaitHidden(selector string, timeout time.Duration) error
	Input(selector, text string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	WaitNavigation(timeout time.Duration)
	Eval(timeout time.Duration, js string, args ...interface{}) (interface{}, error)
	Screenshot(path string) error
	Close() error
}

// rodDriver drives a single stealth page in an owned headless Chromium.
type rodDriver struct {
	browser *rod.Browser
	page    *rod.Page
}

// relayUserAgent pins a desktop UA so the game serves its full layout.
const relayUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// launchOptions are the knobs the session passes down when creating a driver.
type launchOptions struct {
	ProfileDir string
	Headless   bool
	NoSandbox  bool
}

// cleanupStaleLocks removes Chrome lock files left behind by crashed
// sessions. Chrome refuses to start while they exist.
func cleanupStaleLocks(profileDir string) {
	for _, name := range []string{"SingletonLock", "SingletonCookie", "SingletonSocket"} {
		lockPath := filepath.Join(profileDir, name)
		if _, err := os.Stat(lockPath); err == nil {
			if err := os.Remove(lockPath); err != nil {
				L_warn("browser: failed to remove stale lock file", "file", lockPath, "error", err)
			} else {
				L_info("browser: removed stale lock file", "file", lockPath)
			}
		}
	}
}

// newRodDriver launches a browser with a persistent user-data directory and
// opens a single stealth page with a fixed viewport.
func newRodDriver(opts launchOptions) (pageDriver, error) {
	if err := os.MkdirAll(opts.ProfileDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create profile dir: %w", err)
	}
	cleanupStaleLocks(opts.ProfileDir)

	l := launcher.New().
		UserDataDir(opts.ProfileDir).
		Headless(opts.Headless).
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if opts.NoSandbox {
		l = l.Set("no-sandbox")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: relayUserAgent}); err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	L_info("browser: launched", "profileDir", opts.ProfileDir, "headless", opts.Headless)

	return &rodDriver{browser: browser, page: page}, nil
}

func (d *rodDriver) Navigate(url string, timeout time.Duration) error {
	p := d.page.Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (d *rodDriver) WaitVisible(selector string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (d *rodDriver) WaitHidden(selector string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		// Already gone counts as hidden.
		return nil
	}
	return el.Timeout(timeout).WaitInvisible()
}

func (d *rodDriver) Input(selector, text string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		return err
	}
	return el.Input(text)
}

func (d *rodDriver) Click(selector string, timeout time.Duration) error {
	el, err := d.page.Timeout(timeout).Element(selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// WaitNavigation blocks until the page settles after a submit, or the
// timeout elapses. Best effort, the login flow re-probes afterwards anyway.
func (d *rodDriver) WaitNavigation(timeout time.Duration) {
	defer func() {
		// rod cancels the wait through the page context; a racing page
		// teardown can panic instead of returning.
		recover() //nolint:errcheck
	}()
	wait := d.page.Timeout(timeout).WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	wait()
}

func (d *rodDriver) Eval(timeout time.Duration, js string, args ...interface{}) (interface{}, error) {
	res, err := d.page.Timeout(timeout).Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return res.Value.Val(), nil
}

func (d *rodDriver) Screenshot(path string) error {
	data, err := d.page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

func (d *rodDriver) Close() error {
	return d.browser.Close()
}
