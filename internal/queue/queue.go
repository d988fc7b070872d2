// Package queue provides the in-memory FIFO task queue.
package queue

import (
	"sync"

	"github.com/JakeFAU/pagesnap/internal/capture"
)

// Queue tracks tasks across three disjoint states: pending, processing and
// completed. A URL-presence multiset covers pending and processing so
// duplicate checks are O(1). All operations are individually atomic.
type Queue struct {
	mu         sync.Mutex
	pending    []capture.Task
	processing map[string]capture.Task
	completed  map[string]struct{}
	urls       map[string]int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		processing: make(map[string]capture.Task),
		completed:  make(map[string]struct{}),
		urls:       make(map[string]int),
	}
}

// Enqueue appends a task to the pending tail. Callers validate.
func (q *Queue) Enqueue(task capture.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.append(task)
}

// EnqueueUnique appends the task unless its URL is already pending or
// processing. The check and the insert happen under one lock so concurrent
// submitters cannot both slip past the duplicate check.
func (q *Queue) EnqueueUnique(task capture.Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.urls[task.URL] > 0 {
		return false
	}
	q.append(task)
	return true
}

func (q *Queue) append(task capture.Task) {
	q.pending = append(q.pending, task)
	q.urls[task.URL]++
}

// Dequeue removes the pending head and moves it into processing. The
// second return is false when nothing is pending.
func (q *Queue) Dequeue() (capture.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return capture.Task{}, false
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	q.processing[task.ID] = task
	return task, true
}

// Requeue moves a processing task back to the pending tail with its retry
// count incremented. A retried task goes behind all currently pending
// tasks.
func (q *Queue) Requeue(task capture.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, task.ID)
	task.RetryCount++
	q.pending = append(q.pending, task)
}

// MarkComplete retires a processing task. Idempotent: repeated calls for
// the same id change nothing.
func (q *Queue) MarkComplete(taskID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.processing[taskID]
	if !ok {
		return
	}
	delete(q.processing, taskID)
	if q.urls[task.URL] <= 1 {
		delete(q.urls, task.URL)
	} else {
		q.urls[task.URL]--
	}
	q.completed[taskID] = struct{}{}
}

// HasURL reports whether any pending or processing task has the URL.
// Completed tasks do not count.
func (q *Queue) HasURL(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.urls[url] > 0
}

// Snapshot returns a consistent view of queue occupancy.
func (q *Queue) Snapshot() capture.QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	urls := make([]string, 0, len(q.urls))
	for url := range q.urls {
		urls = append(urls, url)
	}
	return capture.QueueSnapshot{
		Pending:    len(q.pending),
		Processing: len(q.processing),
		Completed:  len(q.completed),
		URLs:       urls,
	}
}
