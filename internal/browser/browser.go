// Package browser wraps the Chrome DevTools Protocol connection to
// externally-hosted headless browsers.
package browser

import (
	"context"
	"time"
)

// Options tunes a session at connect time.
type Options struct {
	// SlowMo inserts a fixed pause before each page operation.
	SlowMo time.Duration
}

// Gateway opens sessions against remote browser endpoints.
type Gateway interface {
	Connect(ctx context.Context, endpoint string, opts Options) (Session, error)
}

// Session is one live browser connection. A session is exclusively owned
// by a single worker for the worker's entire lifetime.
type Session interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// NavigationResult carries the main-frame HTTP response of a navigation.
// Status is 0 when the browser produced no response.
type NavigationResult struct {
	Status     int
	StatusText string
}

// Screenshot formats accepted by Page.Screenshot.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// ScreenshotOptions controls rendering of a single screenshot.
type ScreenshotOptions struct {
	Format   string
	Quality  int // 1..100, jpeg only; 0 leaves the browser default
	FullPage bool
}

// Page is a single browser tab, scoped to one capture attempt.
type Page interface {
	SetViewport(ctx context.Context, width, height int) error
	SetUserAgent(ctx context.Context, userAgent string) error
	Navigate(ctx context.Context, url string) (NavigationResult, error)
	WaitDynamicContent(ctx context.Context, d time.Duration) error
	InjectStyle(ctx context.Context, css string) error
	Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}
