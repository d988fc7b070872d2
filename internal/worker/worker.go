package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagesnap/internal/browser"
	"github.com/JakeFAU/pagesnap/internal/capture"
)

// errorHistoryLimit caps the per-worker error history; the oldest record
// is dropped on overflow.
const errorHistoryLimit = 10

// Capturer executes one capture attempt against a session.
type Capturer interface {
	Capture(ctx context.Context, sess browser.Session, task capture.Task, workerID string) capture.Result
}

// Info is a snapshot of a worker for status queries. Counters and error
// history are read together under the worker's lock; Process updates the
// status, the processed count and the error record in separate steps, so
// an Info taken while a capture finishes can show some of these updates
// without the others.
type Info struct {
	ID              string                `json:"id"`
	BrowserEndpoint string                `json:"browserEndpoint"`
	Status          Status                `json:"status"`
	ProcessedCount  int                   `json:"processedCount"`
	ErrorCount      int                   `json:"errorCount"`
	ErrorHistory    []capture.ErrorRecord `json:"errorHistory"`
}

// Worker owns one browser session and executes one capture at a time.
type Worker struct {
	id       string
	endpoint string
	slowMo   time.Duration
	gateway  browser.Gateway
	capturer Capturer
	status   *StatusManager
	clock    capture.Clock
	logger   *zap.Logger

	mu             sync.Mutex
	session        browser.Session
	processedCount int
	errorCount     int
	errorHistory   []capture.ErrorRecord
}

// New constructs a Worker bound to one browser endpoint.
func New(id, endpoint string, slowMo time.Duration, gateway browser.Gateway, capturer Capturer, clock capture.Clock, logger *zap.Logger) *Worker {
	return &Worker{
		id:       id,
		endpoint: endpoint,
		slowMo:   slowMo,
		gateway:  gateway,
		capturer: capturer,
		status:   NewStatusManager(),
		clock:    clock,
		logger:   logger.With(zap.String("worker_id", id)),
	}
}

// ID returns the worker's pool-assigned name.
func (w *Worker) ID() string { return w.id }

// Endpoint returns the configured browser endpoint.
func (w *Worker) Endpoint() string { return w.endpoint }

// Healthy reports whether the worker is idle or busy.
func (w *Worker) Healthy() bool { return w.status.Healthy() }

// Connect opens the worker's session. On failure the worker enters the
// error state and the failure is recorded in its history.
func (w *Worker) Connect(ctx context.Context) error {
	sess, err := w.gateway.Connect(ctx, w.endpoint, browser.Options{SlowMo: w.slowMo})
	if err != nil {
		_ = w.status.To(StatusError)
		w.recordError(capture.ConnectionError(err.Error()), nil)
		return fmt.Errorf("worker %s connect: %w", w.id, err)
	}
	w.mu.Lock()
	w.session = sess
	w.mu.Unlock()
	if err := w.status.To(StatusIdle); err != nil {
		return err
	}
	w.logger.Info("worker connected", zap.String("endpoint", w.endpoint))
	return nil
}

// Disconnect closes the session best-effort and stops the worker.
func (w *Worker) Disconnect() {
	w.mu.Lock()
	sess := w.session
	w.session = nil
	w.mu.Unlock()
	if sess != nil {
		if err := sess.Close(); err != nil {
			w.logger.Debug("session close failed", zap.Error(err))
		}
	}
	_ = w.status.To(StatusStopped)
	w.logger.Info("worker disconnected")
}

// Process runs one capture. An unhealthy or sessionless worker returns a
// synthetic internal failure without touching counters or state. A failure
// whose message indicates a dropped session moves the worker to error;
// every other outcome returns it to idle.
func (w *Worker) Process(ctx context.Context, task capture.Task) capture.Result {
	w.mu.Lock()
	sess := w.session
	w.mu.Unlock()

	if !w.status.Healthy() || sess == nil {
		details := capture.InternalError(fmt.Sprintf("worker %s has no usable browser session", w.id))
		return capture.Result{
			Task:         task,
			Status:       capture.StatusFailed,
			ErrorDetails: &details,
			Timestamp:    w.clock.Now(),
			WorkerID:     w.id,
		}
	}

	_ = w.status.To(StatusBusy)
	result := w.capturer.Capture(ctx, sess, task, w.id)

	w.mu.Lock()
	w.processedCount++
	w.mu.Unlock()

	if result.Status != capture.StatusSuccess {
		details := capture.InternalError("capture failed")
		if result.ErrorDetails != nil {
			details = *result.ErrorDetails
		}
		w.recordError(details, &task)
		if details.Type == capture.ErrorConnection || capture.IsDisconnect(details.Message) {
			_ = w.status.To(StatusError)
			w.logger.Warn("browser session lost",
				zap.String("task_id", task.ID),
				zap.String("url", task.URL),
				zap.String("error", details.Message),
			)
			return result
		}
	}

	_ = w.status.To(StatusIdle)
	return result
}

// recordError increments the error counter and prepends a record to the
// bounded history.
func (w *Worker) recordError(details capture.ErrorDetails, task *capture.Task) {
	record := capture.ErrorRecord{
		ErrorDetails: details,
		Timestamp:    w.clock.Now(),
	}
	if task != nil {
		ref := task.Ref()
		record.Task = &ref
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorCount++
	w.errorHistory = append([]capture.ErrorRecord{record}, w.errorHistory...)
	if len(w.errorHistory) > errorHistoryLimit {
		w.errorHistory = w.errorHistory[:errorHistoryLimit]
	}
}

// Info returns a defensive copy of the worker's observable state.
func (w *Worker) Info() Info {
	w.mu.Lock()
	defer w.mu.Unlock()
	history := make([]capture.ErrorRecord, len(w.errorHistory))
	copy(history, w.errorHistory)
	return Info{
		ID:              w.id,
		BrowserEndpoint: w.endpoint,
		Status:          w.status.Current(),
		ProcessedCount:  w.processedCount,
		ErrorCount:      w.errorCount,
		ErrorHistory:    history,
	}
}
