package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/factgest/internal/extract"
)

// Kind is the type of work a job performs.
type Kind string

const (
	KindIngest  Kind = "ingest"
	KindExtract Kind = "extract"
	KindVerify  Kind = "verify"
)

// JobStatus represents the state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusChunking   JobStatus = "chunking"
	StatusStoring    JobStatus = "storing"
	StatusExtracting JobStatus = "extracting"
	StatusVerifying  JobStatus = "verifying"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// Job tracks the state of a single ingest, extract or verify run.
type Job struct {
	mu sync.Mutex

	ID   string `json:"job_id"`
	Kind Kind   `json:"kind"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename,omitempty"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData   []byte
	request    extract.Request
	statements []string
	result     any
	errors     []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks     int      `json:"total_chunks"`
	ChunksProcessed int      `json:"chunks_processed"`
	FactsValid      int      `json:"facts_valid"`
	FactsStored     int      `json:"facts_stored"`
	Errors          []string `json:"errors"`
}

// NewJob returns a queued job with a fresh time-ordered id.
func NewJob(kind Kind) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewIngestJob wraps an uploaded file.
func NewIngestJob(filename string, data []byte) *Job {
	j := NewJob(KindIngest)
	j.Filename = filename
	j.fileData = data
	j.ContentHash = ContentHashHex(data)
	return j
}

func NewExtractJob(req extract.Request) *Job {
	j := NewJob(KindExtract)
	j.request = req
	return j
}

func NewVerifyJob(statements []string) *Job {
	j := NewJob(KindVerify)
	j.statements = statements
	return j
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindByHash returns another retained ingest job for the same content whose
// upload was actually stored (completed or partial).
func (s *JobStore) FindByHash(hash, exceptID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if id == exceptID {
			continue
		}
		job.mu.Lock()
		match := job.Kind == KindIngest && job.ContentHash == hash &&
			(job.Status == StatusCompleted || job.Status == StatusPartial)
		job.mu.Unlock()
		if match {
			return job
		}
	}
	return nil
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrChunksProcessed atomically increments chunks processed.
func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

// AddFacts records extracted/stored fact counts.
func (j *Job) AddFacts(valid, stored int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.FactsValid += valid
	j.Progress.FactsStored += stored
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// SetResult stores the job output and releases the uploaded bytes.
func (j *Job) SetResult(v any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = v
	j.fileData = nil
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Kind        Kind      `json:"kind"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	Result      any       `json:"result,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:          j.ID,
		Kind:        j.Kind,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		ContentHash: j.ContentHash,
		Progress: Progress{
			TotalChunks:     j.Progress.TotalChunks,
			ChunksProcessed: j.Progress.ChunksProcessed,
			FactsValid:      j.Progress.FactsValid,
			FactsStored:     j.Progress.FactsStored,
			Errors:          errs,
		},
		Result:    j.result,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

var _ extract.Progress = (*Job)(nil)
