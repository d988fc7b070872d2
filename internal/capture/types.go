// Package capture defines core types shared across subsystems.
package capture

import "time"

// Status represents the terminal outcome of one capture attempt.
type Status string

// Capture outcomes recorded in results and metrics.
const (
	StatusSuccess   Status = "success"
	StatusHTTPError Status = "httpError"
	StatusTimeout   Status = "timeout"
	StatusFailed    Status = "failed"
)

// Options selects which artifacts a capture produces.
type Options struct {
	PNG  bool `json:"png"`
	JPEG bool `json:"jpeg"`
	HTML bool `json:"html"`
}

// Any reports whether at least one artifact format is requested.
func (o Options) Any() bool {
	return o.PNG || o.JPEG || o.HTML
}

// Task is the server-side record of one pending capture.
type Task struct {
	ID            string  `json:"taskId"`
	URL           string  `json:"url"`
	Labels        []string `json:"labels,omitempty"`
	CorrelationID string  `json:"correlationId,omitempty"`
	Options       Options `json:"captureOptions"`
	RetryCount    int     `json:"retryCount"`
}

// TaskRef is the subset of task identity attached to error records.
type TaskRef struct {
	TaskID string   `json:"taskId"`
	URL    string   `json:"url"`
	Labels []string `json:"labels,omitempty"`
}

// Ref returns the identity subset of the task.
func (t Task) Ref() TaskRef {
	labels := make([]string, len(t.Labels))
	copy(labels, t.Labels)
	return TaskRef{TaskID: t.ID, URL: t.URL, Labels: labels}
}

// Result is produced for every capture attempt, success or not.
type Result struct {
	Task             Task          `json:"task"`
	Status           Status        `json:"status"`
	HTTPStatusCode   int           `json:"httpStatusCode,omitempty"`
	ErrorDetails     *ErrorDetails `json:"errorDetails,omitempty"`
	PNGPath          string        `json:"pngPath,omitempty"`
	JPEGPath         string        `json:"jpegPath,omitempty"`
	HTMLPath         string        `json:"htmlPath,omitempty"`
	ProcessingTimeMs int64         `json:"captureProcessingTimeMs"`
	Timestamp        time.Time     `json:"timestamp"`
	WorkerID         string        `json:"workerId"`
}

// ErrorRecord is one entry in a worker's bounded error history.
type ErrorRecord struct {
	ErrorDetails ErrorDetails `json:"errorDetails"`
	Timestamp    time.Time    `json:"timestamp"`
	Task         *TaskRef     `json:"task,omitempty"`
}

// QueueSnapshot reports queue occupancy at one instant.
type QueueSnapshot struct {
	Pending    int      `json:"pending"`
	Processing int      `json:"processing"`
	Completed  int      `json:"completed"`
	URLs       []string `json:"-"`
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
