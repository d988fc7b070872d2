package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagesnap/internal/browser"
)

// dynamicContentWait is how long every successful navigation parks in the
// page before artifacts are rendered.
const dynamicContentWait = 3000 * time.Millisecond

const hideScrollbarCSS = "::-webkit-scrollbar { display: none !important; }"

// CapturerConfig controls the per-attempt capture pipeline.
type CapturerConfig struct {
	OutputDir       string
	PageLoadTimeout time.Duration
	CaptureTimeout  time.Duration
	ViewportWidth   int
	ViewportHeight  int
	UserAgent       string
	FullPage        bool
	Quality         int
}

// Capturer executes one capture attempt against one browser session.
type Capturer struct {
	cfg    CapturerConfig
	clock  Clock
	logger *zap.Logger
}

// NewCapturer constructs a Capturer.
func NewCapturer(cfg CapturerConfig, clock Clock, logger *zap.Logger) *Capturer {
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 800
	}
	return &Capturer{cfg: cfg, clock: clock, logger: logger}
}

// Capture runs the full pipeline for one task: open a page, navigate under
// the page-load bound, wait for dynamic content, hide scrollbars, then
// render each requested artifact under the capture bound. The page is
// closed on every exit path and all failures come back as structured
// results, never as errors.
func (c *Capturer) Capture(ctx context.Context, sess browser.Session, task Task, workerID string) Result {
	start := time.Now()
	result := Result{Task: task, WorkerID: workerID}

	page, err := sess.NewPage(ctx)
	if err != nil {
		return c.finish(result.failWith(FromError(err)), start)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			c.logger.Debug("page close failed", zap.String("task_id", task.ID), zap.Error(cerr))
		}
	}()

	if err := page.SetViewport(ctx, c.cfg.ViewportWidth, c.cfg.ViewportHeight); err != nil {
		return c.finish(result.failWith(FromError(err)), start)
	}
	if c.cfg.UserAgent != "" {
		if err := page.SetUserAgent(ctx, c.cfg.UserAgent); err != nil {
			return c.finish(result.failWith(FromError(err)), start)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, c.cfg.PageLoadTimeout)
	nav, err := page.Navigate(navCtx, task.URL)
	cancel()
	if err != nil {
		return c.finish(result.failWith(c.classify(err, c.cfg.PageLoadTimeout, "page load")), start)
	}

	result.HTTPStatusCode = nav.Status
	if nav.Status < 200 || nav.Status >= 300 {
		details := HTTPError(nav.Status, nav.StatusText)
		result.Status = StatusHTTPError
		result.ErrorDetails = &details
		return c.finish(result, start)
	}

	if err := page.WaitDynamicContent(ctx, dynamicContentWait); err != nil {
		return c.finish(result.failWith(FromError(err)), start)
	}
	if err := page.InjectStyle(ctx, hideScrollbarCSS); err != nil {
		return c.finish(result.failWith(FromError(err)), start)
	}

	if task.Options.PNG {
		path, err := c.writeScreenshot(ctx, page, task, browser.FormatPNG)
		if err != nil {
			return c.finish(result.failWith(c.classify(err, c.cfg.CaptureTimeout, "png capture")), start)
		}
		result.PNGPath = path
	}
	if task.Options.JPEG {
		path, err := c.writeScreenshot(ctx, page, task, browser.FormatJPEG)
		if err != nil {
			return c.finish(result.failWith(c.classify(err, c.cfg.CaptureTimeout, "jpeg capture")), start)
		}
		result.JPEGPath = path
	}
	if task.Options.HTML {
		path, err := c.writeHTML(ctx, page, task)
		if err != nil {
			return c.finish(result.failWith(c.classify(err, c.cfg.CaptureTimeout, "html capture")), start)
		}
		result.HTMLPath = path
	}

	result.Status = StatusSuccess
	return c.finish(result, start)
}

func (c *Capturer) writeScreenshot(ctx context.Context, page browser.Page, task Task, format string) (string, error) {
	capCtx, cancel := context.WithTimeout(ctx, c.cfg.CaptureTimeout)
	defer cancel()

	opts := browser.ScreenshotOptions{Format: format, FullPage: c.cfg.FullPage}
	if format == browser.FormatJPEG {
		opts.Quality = c.cfg.Quality
	}
	data, err := page.Screenshot(capCtx, opts)
	if err != nil {
		return "", err
	}
	return c.persist(task, format, data)
}

func (c *Capturer) writeHTML(ctx context.Context, page browser.Page, task Task) (string, error) {
	capCtx, cancel := context.WithTimeout(ctx, c.cfg.CaptureTimeout)
	defer cancel()

	html, err := page.HTML(capCtx)
	if err != nil {
		return "", err
	}
	return c.persist(task, "html", []byte(html))
}

func (c *Capturer) persist(task Task, ext string, data []byte) (string, error) {
	name := GenerateFilename(task.ID, task.CorrelationID, task.Labels, ext)
	path := filepath.Join(c.cfg.OutputDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", ext, err)
	}
	return path, nil
}

// classify maps a stage error to ErrorDetails, turning a context deadline
// into a timeout carrying the stage's configured bound.
func (c *Capturer) classify(err error, bound time.Duration, op string) ErrorDetails {
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(bound.Milliseconds(), op)
	}
	return FromError(err)
}

func (c *Capturer) finish(result Result, start time.Time) Result {
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Timestamp = c.clock.Now()
	return result
}

// failWith stamps a failure class onto the result: timeouts keep their own
// status, everything else is failed. Artifact paths are dropped even when
// an earlier format had already been written; failed results never carry
// paths.
func (r Result) failWith(details ErrorDetails) Result {
	if details.Type == ErrorTimeout {
		r.Status = StatusTimeout
	} else {
		r.Status = StatusFailed
	}
	r.ErrorDetails = &details
	r.PNGPath, r.JPEGPath, r.HTMLPath = "", "", ""
	return r
}
