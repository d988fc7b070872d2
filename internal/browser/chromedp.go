package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// dialTimeout bounds the initial websocket handshake with a remote browser.
const dialTimeout = 30 * time.Second

// ChromedpGateway implements Gateway using chromedp against remote CDP
// endpoints.
type ChromedpGateway struct{}

// NewChromedpGateway creates a gateway for remote browsers.
func NewChromedpGateway() *ChromedpGateway {
	return &ChromedpGateway{}
}

// Connect attaches to a remote browser endpoint. The session outlives the
// passed context; ctx only bounds the handshake.
func (g *ChromedpGateway) Connect(ctx context.Context, endpoint string, opts Options) (Session, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), endpoint)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	dialCtx, cancel := context.WithTimeout(browserCtx, dialTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// An empty Run establishes the websocket and the initial target, so
	// connection failures surface here instead of on the first capture.
	if err := chromedp.Run(dialCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect browser %s: %w", endpoint, err)
	}

	return &chromedpSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		slowMo:        opts.SlowMo,
	}, nil
}

type chromedpSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	slowMo        time.Duration
}

// NewPage opens a fresh tab on the session's browser.
func (s *chromedpSession) NewPage(ctx context.Context) (Page, error) {
	pageCtx, cancel := chromedp.NewContext(s.browserCtx)
	p := &chromedpPage{ctx: pageCtx, cancel: cancel, slowMo: s.slowMo}
	if err := p.run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("open page: %w", err)
	}
	return p, nil
}

// Close drops the websocket. The remote browser itself keeps running.
func (s *chromedpSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	slowMo time.Duration
}

// run executes actions on the page's chromedp context, bounded by the
// caller's context deadline and cancellation.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := p.pace(ctx); err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (p *chromedpPage) pace(ctx context.Context) error {
	if p.slowMo <= 0 {
		return nil
	}
	select {
	case <-time.After(p.slowMo):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *chromedpPage) SetViewport(ctx context.Context, width, height int) error {
	if err := p.run(ctx, chromedp.EmulateViewport(int64(width), int64(height))); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	return nil
}

func (p *chromedpPage) SetUserAgent(ctx context.Context, userAgent string) error {
	if err := p.run(ctx, emulation.SetUserAgentOverride(userAgent)); err != nil {
		return fmt.Errorf("set user-agent: %w", err)
	}
	return nil
}

// Navigate loads the URL and returns the main-frame HTTP response. Status
// is 0 when the browser reported none (about:blank, data: URLs).
func (p *chromedpPage) Navigate(ctx context.Context, url string) (NavigationResult, error) {
	if err := p.pace(ctx); err != nil {
		return NavigationResult{}, err
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if ctx.Err() != nil {
		return NavigationResult{}, ctx.Err()
	}
	if err != nil {
		return NavigationResult{}, fmt.Errorf("navigate: %w", err)
	}
	if resp == nil {
		return NavigationResult{}, nil
	}
	return NavigationResult{Status: int(resp.Status), StatusText: resp.StatusText}, nil
}

// WaitDynamicContent parks in the page for the given duration via an
// in-page timer, letting scripts and late resources settle.
func (p *chromedpPage) WaitDynamicContent(ctx context.Context, d time.Duration) error {
	script := fmt.Sprintf("new Promise(resolve => setTimeout(resolve, %d))", d.Milliseconds())
	err := p.run(ctx, chromedp.Evaluate(script, nil, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
		return params.WithAwaitPromise(true)
	}))
	if err != nil {
		return fmt.Errorf("wait dynamic content: %w", err)
	}
	return nil
}

func (p *chromedpPage) InjectStyle(ctx context.Context, css string) error {
	script := fmt.Sprintf(
		`(css => { const style = document.createElement('style'); style.textContent = css; document.head.appendChild(style); })(%q)`,
		css,
	)
	if err := p.run(ctx, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("inject style: %w", err)
	}
	return nil
}

func (p *chromedpPage) Screenshot(ctx context.Context, opts ScreenshotOptions) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.ActionFunc(func(cctx context.Context) error {
		params := cdppage.CaptureScreenshot().
			WithFormat(captureFormat(opts.Format)).
			WithCaptureBeyondViewport(opts.FullPage)
		if opts.Format == FormatJPEG && opts.Quality > 0 {
			params = params.WithQuality(int64(opts.Quality))
		}
		data, err := params.Do(cctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("dump html: %w", err)
	}
	return html, nil
}

// Close tears down the tab. Safe to call on every exit path.
func (p *chromedpPage) Close() error {
	p.cancel()
	return nil
}

func captureFormat(format string) cdppage.CaptureScreenshotFormat {
	switch format {
	case FormatJPEG:
		return cdppage.CaptureScreenshotFormatJpeg
	default:
		return cdppage.CaptureScreenshotFormatPng
	}
}
