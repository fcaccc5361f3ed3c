// Package browser wraps a remote headless Chromium endpoint (CDP) behind a
// bounded pool of page slots. Every page load sets the configured
// User-Agent, blocks heavy resources and ad domains, and performs a
// two-step lazy-load scroll before returning the rendered HTML.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jonesrussell/newsagent/internal/logger"
	"github.com/jonesrussell/newsagent/internal/urlfilter"
)

const (
	// DefaultNavigateTimeout is the full-article navigation budget.
	DefaultNavigateTimeout = 60 * time.Second
	// QuickNavigateTimeout is the budget for link-relevance probes.
	QuickNavigateTimeout = 15 * time.Second

	lazyScrollWait = 2 * time.Second
)

// FetchError reports a failed page load. Timeout reports whether the
// navigation deadline expired, as opposed to a protocol or network error.
type FetchError struct {
	URL     string
	Timeout bool
	Err     error
}

func (e *FetchError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("browser fetch timed out for %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("browser fetch failed for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Page is the rendered result of a fetch.
type Page struct {
	HTML  string
	Title string
}

// Pool issues pages from a shared remote browser under a process-wide
// concurrency cap.
type Pool struct {
	browser   *rod.Browser
	slots     chan struct{}
	userAgent string
	log       logger.Logger
}

// Connect dials the remote browser over its DevTools websocket endpoint.
func Connect(wsEndpoint, userAgent string, maxSlots int, log logger.Logger) (*Pool, error) {
	if wsEndpoint == "" {
		return nil, errors.New("browser websocket endpoint is required")
	}

	b := rod.New().ControlURL(wsEndpoint)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser at %s: %w", wsEndpoint, err)
	}

	return &Pool{
		browser:   b,
		slots:     make(chan struct{}, maxSlots),
		userAgent: userAgent,
		log:       log,
	}, nil
}

// Close disconnects from the remote browser.
func (p *Pool) Close() error {
	return p.browser.Close()
}

// acquire takes a pool slot, respecting context cancellation.
func (p *Pool) acquire(ctx context.Context) (release func(), err error) {
	select {
	case p.slots <- struct{}{}:
		return func() { <-p.slots }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetch loads a URL with the full hardening pass: stealth script, UA
// override, resource blocking, DOMContentLoaded deadline, and the two-step
// lazy-load scroll. The page is always closed before return.
func (p *Pool) Fetch(ctx context.Context, rawURL string, timeout time.Duration) (*Page, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := p.newHardenedPage(ctx)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			p.log.Debug("Failed to close page", logger.Error(closeErr))
		}
	}()

	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if navErr := page.Navigate(rawURL); navErr != nil {
		return nil, p.classify(ctx, rawURL, navErr)
	}
	wait()
	if ctx.Err() != nil {
		return nil, &FetchError{URL: rawURL, Timeout: true, Err: ctx.Err()}
	}

	p.lazyScroll(page)

	html, err := page.HTML()
	if err != nil {
		return nil, p.classify(ctx, rawURL, err)
	}

	title := ""
	if info, infoErr := page.Info(); infoErr == nil {
		title = info.Title
	}

	return &Page{HTML: html, Title: title}, nil
}

// FetchText loads a URL on the quick budget and returns up to limit runes of
// visible text. Used by the link-relevance fan-out, which does not need a
// faithful render.
func (p *Pool) FetchText(ctx context.Context, rawURL string, limit int) (string, error) {
	page, err := p.Fetch(ctx, rawURL, QuickNavigateTimeout)
	if err != nil {
		return "", err
	}
	return VisibleText(page.HTML, limit), nil
}

// newHardenedPage creates a page with the stealth script, UA override, and
// request interception installed. All three must precede navigation.
func (p *Pool) newHardenedPage(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(p.browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	page = page.Context(ctx)

	if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: p.userAgent,
	}); uaErr != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set user agent: %w", uaErr)
	}

	router := page.HijackRequests()
	err = router.Add("*", "", func(h *rod.Hijack) {
		if blockedResource(h.Request.Type()) || urlfilter.IsBlockedURL(h.Request.URL().String()) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("install request hijack: %w", err)
	}
	go router.Run()

	return page, nil
}

func blockedResource(t proto.NetworkResourceType) bool {
	switch t {
	case proto.NetworkResourceTypeImage,
		proto.NetworkResourceTypeMedia,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeStylesheet:
		return true
	default:
		return false
	}
}

// lazyScroll nudges lazy-loaded content in: halfway, brief wait, bottom,
// brief wait. Scroll failures are ignored; we keep whatever rendered.
func (p *Pool) lazyScroll(page *rod.Page) {
	steps := []string{
		`() => window.scrollTo(0, document.body.scrollHeight / 2)`,
		`() => window.scrollTo(0, document.body.scrollHeight)`,
	}
	for _, js := range steps {
		if _, err := page.Eval(js); err != nil {
			return
		}
		time.Sleep(lazyScrollWait)
	}
}

func (p *Pool) classify(ctx context.Context, rawURL string, err error) *FetchError {
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &FetchError{URL: rawURL, Timeout: timedOut, Err: err}
}
