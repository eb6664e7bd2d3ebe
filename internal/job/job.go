// Package job implements the document-ingestion orchestrator: one submitted
// document becomes one Job, driven through upload, OCR, generation, and
// persistence by a worker pool, with status exposed for polling.
package job

import "time"

// Status is the lifecycle state of a job. Progression is monotonic except
// that RETRYING may return to RUNNING up to the retry bound.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
	StatusRetrying Status = "RETRYING"
)

// Terminal reports whether a status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Pipeline stage names, recorded on terminal failures.
const (
	StageUpload      = "upload"
	StageOCR         = "ocr"
	StageGeneration  = "generation"
	StagePersistence = "persistence"
)

// Job is one submitted document's end-to-end processing unit. It is mutated
// only by the orchestrator's workers; pollers receive snapshots.
type Job struct {
	ID          string
	Filename    string
	ContentType string
	Folder      string
	Data        []byte

	Status  Status
	Result  *Result
	Failure *Failure

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result is the success payload of a finished job.
type Result struct {
	OriginalFilename    string `json:"original_filename"`
	StorageKey          string `json:"storage_key"`
	ExtractedTextLength int    `json:"extracted_text_length"`
	ExamPaperID         string `json:"exam_paper_id"`
}

// Failure records which stage killed the job and why.
type Failure struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// JobStatus is the snapshot returned to polling callers.
type JobStatus struct {
	JobID  string   `json:"job_id"`
	Status Status   `json:"status"`
	Ready  bool     `json:"ready"`
	Result *Result  `json:"result,omitempty"`
	Error  *Failure `json:"error,omitempty"`
}
