package queue

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagesnap/internal/capture"
)

func task(id, url string) capture.Task {
	return capture.Task{ID: id, URL: url, Options: capture.Options{PNG: true}}
}

func TestQueue_FIFOOrder(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(task("a", "https://a"))
	q.Enqueue(task("b", "https://b"))
	q.Enqueue(task("c", "https://c"))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, got.ID)
	}
	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestQueue_DequeueExchange(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(task("a", "https://a"))

	got, ok := q.Dequeue()
	require.True(t, ok)

	snap := q.Snapshot()
	require.Equal(t, 0, snap.Pending)
	require.Equal(t, 1, snap.Processing)
	require.True(t, q.HasURL(got.URL))
}

func TestQueue_HasURLCoversPendingAndProcessingOnly(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(task("a", "https://a"))
	require.True(t, q.HasURL("https://a"))
	require.False(t, q.HasURL("https://b"))

	got, _ := q.Dequeue()
	require.True(t, q.HasURL("https://a"))

	q.MarkComplete(got.ID)
	require.False(t, q.HasURL("https://a"))
}

func TestQueue_RequeueIncrementsAndGoesToTail(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(task("a", "https://a"))
	q.Enqueue(task("b", "https://b"))

	first, _ := q.Dequeue()
	require.Equal(t, 0, first.RetryCount)
	q.Requeue(first)

	next, _ := q.Dequeue()
	require.Equal(t, "b", next.ID)

	retried, _ := q.Dequeue()
	require.Equal(t, "a", retried.ID)
	require.Equal(t, 1, retried.RetryCount)

	// still present while processing
	require.True(t, q.HasURL("https://a"))
}

func TestQueue_MarkCompleteIdempotent(t *testing.T) {
	t.Parallel()

	q := New()
	q.Enqueue(task("a", "https://a"))
	got, _ := q.Dequeue()

	q.MarkComplete(got.ID)
	q.MarkComplete(got.ID)

	require.False(t, q.HasURL("https://a"))
	snap := q.Snapshot()
	require.Equal(t, capture.QueueSnapshot{Pending: 0, Processing: 0, Completed: 1, URLs: []string{}}, snap)
}

func TestQueue_PartitionsDisjoint(t *testing.T) {
	t.Parallel()

	q := New()
	for i := 0; i < 5; i++ {
		q.Enqueue(task(fmt.Sprintf("t%d", i), fmt.Sprintf("https://site/%d", i)))
	}
	a, _ := q.Dequeue()
	b, _ := q.Dequeue()
	q.MarkComplete(a.ID)

	snap := q.Snapshot()
	require.Equal(t, 3, snap.Pending)
	require.Equal(t, 1, snap.Processing)
	require.Equal(t, 1, snap.Completed)
	require.True(t, q.HasURL(b.URL))
	require.False(t, q.HasURL(a.URL))
}

func TestQueue_EnqueueUnique(t *testing.T) {
	t.Parallel()

	q := New()
	require.True(t, q.EnqueueUnique(task("a", "https://a")))
	require.False(t, q.EnqueueUnique(task("b", "https://a")))

	got, _ := q.Dequeue()
	// still processing, still rejected
	require.False(t, q.EnqueueUnique(task("c", "https://a")))

	q.MarkComplete(got.ID)
	require.True(t, q.EnqueueUnique(task("d", "https://a")))
}

func TestQueue_ConcurrentDequeueObservesEachTaskOnce(t *testing.T) {
	t.Parallel()

	q := New()
	const total = 200
	for i := 0; i < total; i++ {
		q.Enqueue(task(fmt.Sprintf("t%d", i), fmt.Sprintf("https://site/%d", i)))
	}

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[got.ID]++
				mu.Unlock()
				q.MarkComplete(got.ID)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, n := range seen {
		require.Equal(t, 1, n, id)
	}
	snap := q.Snapshot()
	require.Equal(t, total, snap.Completed)
}
