package datasets

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"genomedesigner/internal/core"
	"genomedesigner/internal/dataset"
)

// JobStatus describes the lifecycle stage of a compression job.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job tracks one asynchronous dataset compression.
type Job struct {
	ID          string        `json:"id"`
	DatasetID   string        `json:"dataset_id"`
	Suffix      string        `json:"suffix"`
	Status      JobStatus     `json:"status"`
	Error       string        `json:"error,omitempty"`
	Result      *core.Dataset `json:"dataset,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

func (j Job) copy() Job {
	dup := j
	if j.Result != nil {
		ds := *j.Result
		dup.Result = &ds
	}
	return dup
}

// Compressor writes compressed copies of datasets. *core.Service satisfies it.
type Compressor interface {
	CompressDataset(ctx context.Context, datasetID, suffix string) (core.Dataset, error)
}

// Scheduler queues compression jobs and exposes their status.
type Scheduler interface {
	EnqueueCompression(ctx context.Context, datasetID, suffix string) (Job, error)
	GetCompression(id string) (Job, bool)
}

// ErrQueueFull is returned when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("compression queue full")

// Worker runs dataset compressions in the background, one at a time.
type Worker struct {
	compressor Compressor
	audit      core.AuditRecorder
	now        func() time.Time

	queue chan string
	mu    sync.RWMutex
	jobs  map[string]*Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker constructs a compression worker. A nil audit recorder disables auditing.
func NewWorker(c Compressor, audit core.AuditRecorder) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		compressor: c,
		audit:      audit,
		now:        func() time.Time { return time.Now().UTC() },
		queue:      make(chan string, 32),
		jobs:       make(map[string]*Job),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case id := <-w.queue:
			w.process(id)
		}
	}
}

// EnqueueCompression validates the suffix and queues a job.
func (w *Worker) EnqueueCompression(ctx context.Context, datasetID, suffix string) (Job, error) {
	if w.compressor == nil {
		return Job{}, fmt.Errorf("compressor not configured")
	}
	if strings.TrimSpace(datasetID) == "" {
		return Job{}, fmt.Errorf("dataset id required")
	}
	suffix, err := dataset.CompressedSuffix(suffix)
	if err != nil {
		return Job{}, err
	}

	now := w.now()
	job := Job{
		ID:        newID(),
		DatasetID: datasetID,
		Suffix:    suffix,
		Status:    JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	w.mu.Lock()
	w.jobs[job.ID] = &job
	queued := job.copy()
	w.mu.Unlock()

	w.record(ctx, queued, core.AuditStatusSuccess, "")
	select {
	case w.queue <- job.ID:
	default:
		w.fail(job.ID, ErrQueueFull.Error())
		return Job{}, ErrQueueFull
	}
	return queued, nil
}

// GetCompression returns a snapshot of a job.
func (w *Worker) GetCompression(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

func (w *Worker) process(id string) {
	job, ok := w.GetCompression(id)
	if !ok {
		return
	}
	w.update(id, func(j *Job) { j.Status = JobStatusRunning })

	ds, err := w.compressor.CompressDataset(w.ctx, job.DatasetID, job.Suffix)
	if err != nil {
		w.fail(id, err.Error())
		return
	}
	completed := w.update(id, func(j *Job) {
		j.Status = JobStatusSucceeded
		j.Result = &ds
	})
	w.record(w.ctx, completed, core.AuditStatusSuccess, "")
}

func (w *Worker) fail(id, reason string) {
	failed := w.update(id, func(j *Job) {
		j.Status = JobStatusFailed
		j.Error = reason
	})
	w.record(w.ctx, failed, core.AuditStatusError, reason)
}

func (w *Worker) update(id string, mutate func(*Job)) Job {
	now := w.now()
	w.mu.Lock()
	defer w.mu.Unlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}
	}
	mutate(job)
	job.UpdatedAt = now
	if job.Status == JobStatusSucceeded || job.Status == JobStatusFailed {
		job.CompletedAt = &now
	}
	return job.copy()
}

func (w *Worker) record(ctx context.Context, job Job, status core.AuditStatus, reason string) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, core.AuditEntry{
		Operation: "compress_dataset_" + string(job.Status),
		Entity:    core.EntityDataset,
		EntityID:  job.DatasetID,
		Status:    status,
		Error:     reason,
		At:        job.UpdatedAt,
	})
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", b[:])
}
