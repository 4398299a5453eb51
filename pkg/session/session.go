// Package session drives the single headless browser page used to fetch
// timeline pages.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tweetwatch/pkg/cookies"
	twerrors "tweetwatch/pkg/errors"
	"tweetwatch/pkg/logger"
)

// State of a Driver.
type State int32

const (
	StateUninitialized State = iota
	StateLaunching
	StateReady
	StateNavigating
	StateContentAvailable
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateNavigating:
		return "navigating"
	case StateContentAvailable:
		return "content_available"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

var (
	// ErrSessionAlreadyOpen is returned when a second session is opened
	// while one is live in this process.
	ErrSessionAlreadyOpen = errors.New("a browser session is already open")
	// ErrNotOpen is returned by Fetch before Open.
	ErrNotOpen = errors.New("browser session not open")
)

// active is the one open driver in the process.
var active atomic.Pointer[Driver]

// Options for a Driver.
type Options struct {
	Launch            LaunchOptions
	UserAgent         string
	Headers           map[string]string
	NavigationTimeout time.Duration
	ShutdownTimeout   time.Duration
	CookieSource      string
}

// FetchResult is the page content after a navigation. TimedOut means the
// navigation deadline passed and Content is whatever had loaded by then.
type FetchResult struct {
	URL      string
	Content  string
	TimedOut bool
	Duration time.Duration
}

// Driver owns the browser and its page.
type Driver struct {
	mu       sync.Mutex
	state    atomic.Int32
	launcher Launcher
	cookies  CookieSource
	opts     Options
	log      logger.Logger

	browser Browser
	page    Page
}

// New creates a driver. Nothing is launched until Open.
func New(l Launcher, c CookieSource, opts Options, log logger.Logger) *Driver {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 20 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	return &Driver{
		launcher: l,
		cookies:  c,
		opts:     opts,
		log:      log.WithField("component", "session"),
	}
}

// State returns the current state without waiting for an in-flight fetch.
func (d *Driver) State() State {
	return State(d.state.Load())
}

func (d *Driver) setState(s State) {
	prev := State(d.state.Swap(int32(s)))
	if prev != s {
		d.log.DebugWithFields("Session state changed", map[string]interface{}{
			"from": prev.String(),
			"to":   s.String(),
		})
	}
}

// SetCookieSource changes where cookies are read from on the next fetch.
func (d *Driver) SetCookieSource(source string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.CookieSource = source
}

// Open launches the browser and creates the page.
func (d *Driver) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case StateClosed:
		return twerrors.SessionClosed("open")
	case StateUninitialized:
	default:
		return ErrSessionAlreadyOpen
	}
	if !active.CompareAndSwap(nil, d) {
		return ErrSessionAlreadyOpen
	}

	d.setState(StateLaunching)
	start := time.Now()

	browser, err := d.launcher.Launch(ctx, d.opts.Launch)
	if err != nil {
		d.abortLaunch()
		return twerrors.LaunchFailure(err)
	}

	page, err := browser.NewPage(ctx)
	if err != nil {
		_ = browser.Close()
		d.abortLaunch()
		return twerrors.LaunchFailure(fmt.Errorf("open page: %w", err))
	}

	d.browser = browser
	d.page = page
	d.setState(StateReady)

	d.log.InfoWithFields("Browser session opened", map[string]interface{}{
		"headless": d.opts.Launch.Headless,
		"stealth":  d.opts.Launch.Stealth,
		"duration": time.Since(start),
	})
	return nil
}

func (d *Driver) abortLaunch() {
	active.CompareAndSwap(d, nil)
	d.setState(StateUninitialized)
}

// Fetch navigates the page to url with a fresh identity and returns its
// content. A navigation that exceeds the timeout is not an error: the
// result is marked TimedOut and carries whatever content is available.
func (d *Driver) Fetch(ctx context.Context, url string) (FetchResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.State() {
	case StateClosed:
		return FetchResult{}, twerrors.SessionClosed("fetch")
	case StateUninitialized, StateLaunching:
		return FetchResult{}, ErrNotOpen
	}

	records, err := d.cookies.Load(d.opts.CookieSource)
	if err != nil {
		if twerrors.TypeOf(err) != twerrors.ErrorTypeCookieParse {
			err = twerrors.CookieParse(d.opts.CookieSource, err)
		}
		return FetchResult{}, err
	}

	d.setState(StateNavigating)
	start := time.Now()
	result := FetchResult{URL: url}

	if err := d.prepare(records); err != nil {
		d.setState(StateReady)
		return result, twerrors.Navigation(url, err)
	}

	navCtx, cancel := context.WithTimeout(ctx, d.opts.NavigationTimeout)
	navErr := d.page.Navigate(navCtx, url)
	timedOut := navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil
	cancel()

	switch {
	case ctx.Err() != nil:
		d.setState(StateReady)
		return result, ctx.Err()
	case timedOut:
		result.TimedOut = true
		d.log.WithError(twerrors.NavigationTimeout(url, navErr)).WarnWithFields("Navigation timed out, using partial content", map[string]interface{}{
			"url":     url,
			"timeout": d.opts.NavigationTimeout,
		})
	case navErr != nil:
		d.setState(StateReady)
		return result, twerrors.Navigation(url, navErr)
	}

	content, err := d.page.HTML()
	if err != nil && !timedOut {
		d.setState(StateReady)
		return result, twerrors.Navigation(url, fmt.Errorf("read content: %w", err))
	}

	result.Content = content
	result.Duration = time.Since(start)
	d.setState(StateContentAvailable)
	return result, nil
}

func (d *Driver) prepare(records []cookies.Record) error {
	if d.opts.UserAgent != "" {
		if err := d.page.SetUserAgent(d.opts.UserAgent); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(d.opts.Headers) > 0 {
		if err := d.page.SetHeaders(d.opts.Headers); err != nil {
			return fmt.Errorf("set headers: %w", err)
		}
	}
	if err := d.page.SetCookies(records); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Close releases the page and browser and kills the browser process. The
// kill is best effort and bounded by the shutdown timeout. Close is
// idempotent.
func (d *Driver) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.State() == StateClosed {
		return nil
	}
	defer func() {
		active.CompareAndSwap(d, nil)
		d.setState(StateClosed)
	}()

	if d.browser == nil {
		return nil
	}

	var errs []error
	if err := d.page.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close page: %w", err))
	}
	if err := d.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}

	killCtx, cancel := context.WithTimeout(ctx, d.opts.ShutdownTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.browser.Kill(killCtx) }()

	select {
	case err := <-done:
		if err != nil {
			errs = append(errs, fmt.Errorf("kill browser: %w", err))
		}
	case <-killCtx.Done():
		d.log.Warn("Browser process did not exit before the shutdown timeout")
	}

	d.browser, d.page = nil, nil
	d.log.Info("Browser session closed")
	return errors.Join(errs...)
}
