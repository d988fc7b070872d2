// Package api exposes the HTTP interface for the capture service.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagesnap/internal/capture"
	"github.com/JakeFAU/pagesnap/internal/metrics"
	"github.com/JakeFAU/pagesnap/internal/pool"
)

// CapturePool is the dispatch surface the server needs.
type CapturePool interface {
	Enqueue(task capture.Task) error
	Status() pool.Status
	Running() bool
	HealthyWorkerCount() int
}

// Server wires HTTP handlers to the worker pool.
type Server struct {
	router chi.Router
	pool   CapturePool
	idGen  capture.IDGenerator
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(capturePool CapturePool, idGen capture.IDGenerator, logger *zap.Logger) *Server {
	s := &Server{
		pool:   capturePool,
		idGen:  idGen,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/captures", s.submitCapture)
		r.Get("/status", s.getStatus)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if !s.pool.Running() || s.pool.HealthyWorkerCount() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no healthy workers"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type captureRequest struct {
	URL            string           `json:"url"`
	Labels         []string         `json:"labels"`
	CorrelationID  string           `json:"correlationId"`
	CaptureOptions *capture.Options `json:"captureOptions"`
}

type captureAck struct {
	Accepted      bool   `json:"accepted"`
	TaskID        string `json:"taskId"`
	CorrelationID string `json:"correlationId,omitempty"`
	Error         string `json:"error,omitempty"`
}

// submitCapture validates the submission, assigns a task id and enqueues.
// Validation failures and enqueue rejections are in-band rejections. Pool
// unavailability (503), an undecodable body (400) and a failed task id
// generation (500) are transport-level errors.
func (s *Server) submitCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeReject(w, "url is required")
		return
	}

	labels := make([]string, 0, len(req.Labels))
	for _, label := range req.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if err := capture.ValidateFragment(label); err != nil {
			writeReject(w, err.Error())
			return
		}
		labels = append(labels, label)
	}

	correlationID := strings.TrimSpace(req.CorrelationID)
	if correlationID != "" {
		if err := capture.ValidateFragment(correlationID); err != nil {
			writeReject(w, err.Error())
			return
		}
	}

	if req.CaptureOptions == nil || !req.CaptureOptions.Any() {
		writeReject(w, "at least one of png, jpeg or html must be requested")
		return
	}

	if !s.pool.Running() || s.pool.HealthyWorkerCount() == 0 {
		writeError(w, http.StatusServiceUnavailable, "No healthy workers available")
		return
	}

	taskID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate task id: %v", err))
		return
	}

	task := capture.Task{
		ID:            taskID,
		URL:           url,
		Labels:        labels,
		CorrelationID: correlationID,
		Options:       *req.CaptureOptions,
	}
	if err := s.pool.Enqueue(task); err != nil {
		writeReject(w, err.Error())
		return
	}

	s.logger.Info("capture accepted",
		zap.String("task_id", taskID),
		zap.String("url", url),
	)
	writeJSON(w, http.StatusAccepted, captureAck{
		Accepted:      true,
		TaskID:        taskID,
		CorrelationID: correlationID,
	})
}

type statusResponse struct {
	Pending        int           `json:"pending"`
	Processing     int           `json:"processing"`
	Completed      int           `json:"completed"`
	HealthyWorkers int           `json:"healthyWorkers"`
	TotalWorkers   int           `json:"totalWorkers"`
	IsRunning      bool          `json:"isRunning"`
	Workers        []workerState `json:"workers"`
}

type workerState struct {
	ID              string                `json:"id"`
	BrowserEndpoint string                `json:"browserEndpoint"`
	Status          string                `json:"status"`
	ProcessedCount  int                   `json:"processedCount"`
	ErrorCount      int                   `json:"errorCount"`
	ErrorHistory    []capture.ErrorRecord `json:"errorHistory"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	status := s.pool.Status()
	workers := make([]workerState, 0, len(status.Workers))
	for _, info := range status.Workers {
		workers = append(workers, workerState{
			ID:              info.ID,
			BrowserEndpoint: info.BrowserEndpoint,
			Status:          string(info.Status),
			ProcessedCount:  info.ProcessedCount,
			ErrorCount:      info.ErrorCount,
			ErrorHistory:    info.ErrorHistory,
		})
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Pending:        status.Queue.Pending,
		Processing:     status.Queue.Processing,
		Completed:      status.Queue.Completed,
		HealthyWorkers: status.HealthyWorkers,
		TotalWorkers:   status.TotalWorkers,
		IsRunning:      status.Running,
		Workers:        workers,
	})
}

func writeReject(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, captureAck{Accepted: false, TaskID: "", Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
