package server

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/dca-simulator/internal/batch"
	"github.com/aristath/dca-simulator/internal/priceprovider"
)

// batchJobStatus is the wire shape returned by GET /api/batch/{id} and
// streamed over the batch websocket as progress advances.
type batchJobStatus struct {
	Completed     int          `json:"completed"`
	Total         int          `json:"total"`
	CurrentSymbol string       `json:"currentSymbol,omitempty"`
	Done          bool         `json:"done"`
	Cancelled     bool         `json:"cancelled,omitempty"`
	Error         string       `json:"error,omitempty"`
	Result        *batch.Result `json:"result,omitempty"`
}

// batchJob tracks one in-flight or completed sweep and fans its progress
// updates out to any attached websocket subscribers.
type batchJob struct {
	mu          sync.Mutex
	status      batchJobStatus
	subscribers map[chan []byte]struct{}
	cancel      context.CancelFunc
}

func (j *batchJob) broadcast(msg []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for ch := range j.subscribers {
		select {
		case ch <- msg:
		default: // slow subscriber drops a frame rather than blocking the run
		}
	}
}

func (j *batchJob) closeSubscribers() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for ch := range j.subscribers {
		close(ch)
	}
	j.subscribers = make(map[chan []byte]struct{})
}

// batchJobRegistry holds every sweep started this process lifetime. It is
// intentionally unbounded and in-memory only: batch results themselves are
// archived externally (§9 persistence-free core) when an Archiver is wired.
type batchJobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*batchJob
}

func newBatchJobRegistry() *batchJobRegistry {
	return &batchJobRegistry{jobs: make(map[string]*batchJob)}
}

// start launches cfg as a background sweep and returns its batch ID
// immediately; onComplete runs once with the final result if the run
// succeeds (used to archive it).
func (r *batchJobRegistry) start(cfg batch.Config, provider priceprovider.Provider, cache *batch.ResultCache, onComplete func(batch.Result), log zerolog.Logger) string {
	batchID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	job := &batchJob{subscribers: make(map[chan []byte]struct{}), cancel: cancel}

	r.mu.Lock()
	r.jobs[batchID] = job
	r.mu.Unlock()

	progress := func(completed, total int, symbol string, _ map[string]any) {
		job.mu.Lock()
		job.status.Completed = completed
		job.status.Total = total
		job.status.CurrentSymbol = symbol
		msg, _ := json.Marshal(job.status)
		job.mu.Unlock()
		job.broadcast(msg)
	}

	go func() {
		result, err := batch.RunBatch(ctx, log, cfg, provider, progress, cache)

		job.mu.Lock()
		job.status.Done = true
		if err != nil {
			job.status.Error = err.Error()
		} else {
			job.status.Result = &result
			job.status.Cancelled = result.Cancelled
		}
		msg, _ := json.Marshal(job.status)
		job.mu.Unlock()

		job.broadcast(msg)
		job.closeSubscribers()

		if err == nil && !result.Cancelled {
			onComplete(result)
		}
	}()

	return batchID
}

func (r *batchJobRegistry) status(id string) (batchJobStatus, bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return batchJobStatus{}, false
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	return job.status, true
}

// subscribe attaches a channel that receives every subsequent progress
// frame for id. The bool return is false if id is unknown. If the job has
// already finished, the channel is returned pre-closed so the caller sends
// nothing further.
func (r *batchJobRegistry) subscribe(id string) (chan []byte, func(), bool) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return nil, nil, false
	}

	ch := make(chan []byte, 16)
	job.mu.Lock()
	job.subscribers[ch] = struct{}{}
	done := job.status.Done
	job.mu.Unlock()
	if done {
		close(ch)
	}

	unsubscribe := func() {
		job.mu.Lock()
		delete(job.subscribers, ch)
		job.mu.Unlock()
	}
	return ch, unsubscribe, true
}

// cancelJob stops a running sweep's context; RunBatch observes it on its next
// iteration and returns a result with Cancelled set.
func (r *batchJobRegistry) cancelJob(id string) bool {
	r.mu.Lock()
	job, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	job.cancel()
	return true
}
