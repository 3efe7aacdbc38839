// Package browser drives headless Chrome through chromedp. A Session owns one
// browser process with a single tab; Probe and Render use throwaway sessions.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ppiankov/casefile/internal/model"
)

var (
	// ErrTimeout means the page did not finish loading in time; retryable
	ErrTimeout = errors.New("browser: navigation timed out")

	// ErrDriver means the browser itself failed; not retryable
	ErrDriver = errors.New("browser: driver failure")
)

// Options configures a browser process
type Options struct {
	ExecPath  string
	UserAgent string
	Width     int
	Height    int
	Headful   bool // Show the window; debugging only
}

// OptionsFromConfig maps the browser config section
func OptionsFromConfig(cfg model.BrowserConfig) Options {
	return Options{
		ExecPath:  cfg.ExecPath,
		UserAgent: cfg.UserAgent,
		Width:     cfg.WindowWidth,
		Height:    cfg.WindowHeight,
	}
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !o.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	if o.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(o.UserAgent))
	}
	if o.Width > 0 && o.Height > 0 {
		opts = append(opts, chromedp.WindowSize(o.Width, o.Height))
	}
	return opts
}

// Session is one browser process with one tab
type Session struct {
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewSession starts a browser. The process lives until Close, independent of
// the caller's context.
func NewSession(opts Options) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts.allocatorOptions()...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// First Run launches the process
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: start browser: %v", ErrDriver, err)
	}

	return &Session{
		tab:         tab,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// run executes actions on the tab, bounded by timeout and by ctx
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: session closed", ErrDriver)
	}

	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return classify(ctx, runCtx, chromedp.Run(runCtx, actions...))
}

// classify maps a chromedp error onto ErrTimeout, ErrDriver or the caller's
// own cancellation
func classify(caller, run context.Context, err error) error {
	if err == nil {
		return nil
	}
	if caller.Err() != nil {
		return caller.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(run.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrDriver, err)
}

// Navigate loads rawURL and waits for the load event
func (s *Session) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.Navigate(rawURL))
}

// Title returns document.title of the current page
func (s *Session) Title(ctx context.Context, timeout time.Duration) (string, error) {
	var title string
	if err := s.run(ctx, timeout, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// HTML returns the rendered document markup after waiting settle for
// scripts to populate the page
func (s *Session) HTML(ctx context.Context, timeout, settle time.Duration) (string, error) {
	var html string
	actions := []chromedp.Action{}
	if settle > 0 {
		actions = append(actions, chromedp.Sleep(settle))
	}
	actions = append(actions,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := s.run(ctx, timeout, actions...); err != nil {
		return "", err
	}
	return html, nil
}

// Close stops the browser process. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	// Cancelling the tab context closes the tab and the browser gracefully
	s.tabCancel()
	s.allocCancel()
	return nil
}

// Probe opens a throwaway browser, loads rawURL and returns its title
func Probe(ctx context.Context, opts Options, rawURL string, timeout time.Duration) (string, error) {
	s, err := NewSession(opts)
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Close() }()

	if err := s.Navigate(ctx, rawURL, timeout); err != nil {
		return "", err
	}
	return s.Title(ctx, timeout)
}

// Render opens a throwaway browser and returns the settled markup of rawURL.
// timeout bounds the whole operation.
func Render(ctx context.Context, opts Options, rawURL string, timeout, settle time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)

	s, err := NewSession(opts)
	if err != nil {
		return "", err
	}
	defer func() { _ = s.Close() }()

	if err := s.Navigate(ctx, rawURL, time.Until(deadline)); err != nil {
		return "", err
	}
	return s.HTML(ctx, time.Until(deadline), settle)
}
