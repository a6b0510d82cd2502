// Package capture drives a headless browser against isitchristmas.com,
// rewrites the country code embedded in the served document before it
// reaches the renderer, and extracts a full-page PNG screenshot.
package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	// DefaultTargetURL is the fixed site this service screenshots.
	DefaultTargetURL = "https://isitchristmas.com"

	// DefaultCountry is injected when the caller supplies no country code.
	DefaultCountry = "SE"

	defaultViewportWidth  = 1920
	defaultViewportHeight = 1080
	defaultSettleDelay    = 2 * time.Second
	defaultTimeout        = 60 * time.Second

	// networkQuietWindow is how long the network must stay free of in-flight
	// requests before navigation counts as settled.
	networkQuietWindow = 500 * time.Millisecond
)

// Config controls a Capturer. Zero values fall back to the defaults above.
type Config struct {
	TargetURL      string
	ViewportWidth  int
	ViewportHeight int
	SettleDelay    time.Duration
	Timeout        time.Duration
	ChromePath     string
	Debug          bool
}

// Capturer produces screenshots of the target site. Each Capture call runs
// an isolated browser process, so a Capturer is safe for concurrent use and
// no state is shared between captures.
type Capturer struct {
	cfg Config
}

// New creates a Capturer, filling in defaults for unset config fields.
func New(cfg Config) *Capturer {
	if cfg.TargetURL == "" {
		cfg.TargetURL = DefaultTargetURL
	}
	if cfg.ViewportWidth == 0 {
		cfg.ViewportWidth = defaultViewportWidth
	}
	if cfg.ViewportHeight == 0 {
		cfg.ViewportHeight = defaultViewportHeight
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Capturer{cfg: cfg}
}

// Capture launches a fresh headless browser, loads the target page with the
// document's embedded country variable rewritten to countryCode, waits for
// the network to go idle plus a fixed settle delay, and returns a full-page
// PNG. The browser process is torn down on every path, including errors.
func (c *Capturer) Capture(ctx context.Context, countryCode string) ([]byte, error) {
	if countryCode == "" {
		countryCode = DefaultCountry
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(c.cfg.ViewportWidth, c.cfg.ViewportHeight),
	)
	if c.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromePath))
	}

	// Cancelling the allocator context kills the Chrome process, so the
	// deferred cancels below are the teardown guarantee.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	var browserCtx context.Context
	var cancelBrowser context.CancelFunc
	if c.cfg.Debug {
		browserCtx, cancelBrowser = chromedp.NewContext(allocCtx, chromedp.WithErrorf(log.Printf))
	} else {
		browserCtx, cancelBrowser = chromedp.NewContext(allocCtx)
	}
	defer cancelBrowser()

	// Both listeners must be in place before navigation starts.
	c.interceptDocument(browserCtx, countryCode)
	idle := newIdleWaiter(browserCtx, networkQuietWindow)

	var buf []byte
	err := chromedp.Run(browserCtx,
		network.Enable(),
		// Pause only the top-level document, and only once its response is
		// available. Scripts, styles and images are never paused, so they
		// pass through untouched.
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
			URLPattern:   "*",
			ResourceType: network.ResourceTypeDocument,
			RequestStage: fetch.RequestStageResponse,
		}}),
		chromedp.Navigate(c.cfg.TargetURL),
		idle.wait(),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.FullScreenshot(&buf, 100),
	)
	if err != nil {
		return nil, fmt.Errorf("capture for country %s failed: %w", countryCode, err)
	}

	return buf, nil
}

// interceptDocument registers the handler that rewrites the paused document
// response. The handler closes over this capture's country code; nothing is
// shared across requests.
func (c *Capturer) interceptDocument(ctx context.Context, countryCode string) {
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}

		// CDP commands cannot be issued from inside the listener callback.
		go func() {
			ectx := cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Target)

			if paused.ResourceType != network.ResourceTypeDocument {
				if err := fetch.ContinueRequest(paused.RequestID).Do(ectx); err != nil {
					slog.Warn("failed to continue intercepted request", "url", paused.Request.URL, "error", err)
				}
				return
			}

			// A document that failed at the network level has no body to
			// rewrite; relay the failure so navigation reports it.
			if paused.ResponseErrorReason != "" {
				if err := fetch.FailRequest(paused.RequestID, paused.ResponseErrorReason).Do(ectx); err != nil {
					slog.Warn("failed to relay document failure", "url", paused.Request.URL, "error", err)
				}
				return
			}

			body, err := fetch.GetResponseBody(paused.RequestID).Do(ectx)
			if err != nil {
				slog.Warn("failed to read document body, passing response through", "url", paused.Request.URL, "error", err)
				if err := fetch.ContinueResponse(paused.RequestID).Do(ectx); err != nil {
					slog.Warn("failed to continue document response", "url", paused.Request.URL, "error", err)
				}
				return
			}

			// Content-Length no longer matches the rewritten body, and the
			// body from GetResponseBody is already decoded.
			headers := make([]*fetch.HeaderEntry, 0, len(paused.ResponseHeaders))
			for _, h := range paused.ResponseHeaders {
				switch strings.ToLower(h.Name) {
				case "content-length", "content-encoding":
					continue
				}
				headers = append(headers, h)
			}

			fulfill := fetch.FulfillRequest(paused.RequestID, paused.ResponseStatusCode).
				WithResponseHeaders(headers).
				WithBody(base64.StdEncoding.EncodeToString(RewriteCountry(body, countryCode)))
			if err := fulfill.Do(ectx); err != nil {
				slog.Warn("failed to fulfill rewritten document", "url", paused.Request.URL, "error", err)
			}
		}()
	})
}
