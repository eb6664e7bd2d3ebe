package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"examai/internal/logger"
	"examai/internal/mongodb"
	"examai/internal/ocr"
	"examai/internal/paper"
	"examai/internal/storage"
)

// Config tunes the orchestrator. Zero values fall back to the defaults the
// pipeline was designed around.
type Config struct {
	Workers       int
	QueueSize     int
	RetryAttempts int
	RetryBackoff  time.Duration
	Collection    string
}

func (c *Config) applyDefaults() {
	if c.Workers < 1 {
		c.Workers = 3
	}
	if c.QueueSize < 1 {
		c.QueueSize = 100
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 60 * time.Second
	}
	if c.Collection == "" {
		c.Collection = "exam_papers"
	}
}

// Service is the job orchestrator. Submissions return immediately; the
// stage sequence runs on a pool of workers, one job per worker at a time.
type Service struct {
	store     *Store
	queue     chan *Job
	wg        sync.WaitGroup
	blobs     storage.Gateway
	extractor ocr.Service
	generator paper.Service
	papers    mongodb.Store
	cfg       Config
	log       zerolog.Logger
}

// NewService wires the orchestrator to its four gateways.
func NewService(blobs storage.Gateway, extractor ocr.Service, generator paper.Service, papers mongodb.Store, cfg Config) *Service {
	cfg.applyDefaults()
	return &Service{
		store:     NewStore(),
		queue:     make(chan *Job, cfg.QueueSize),
		blobs:     blobs,
		extractor: extractor,
		generator: generator,
		papers:    papers,
		cfg:       cfg,
		log:       logger.WithComponent("job-orchestrator"),
	}
}

// Start launches the worker pool.
func (s *Service) Start() {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	s.log.Info().Int("workers", s.cfg.Workers).Msg("Worker pool started")
}

// Shutdown stops accepting work and waits for in-flight jobs to finish.
func (s *Service) Shutdown() {
	close(s.queue)
	s.wg.Wait()
	s.log.Info().Msg("Worker pool stopped")
}

// Submit validates the input, creates a PENDING job, and schedules it.
// It returns the job identifier without waiting for any stage.
func (s *Service) Submit(data []byte, filename, contentType, folder string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file buffer", ErrInvalidInput)
	}
	if filename == "" {
		return "", fmt.Errorf("%w: empty filename", ErrInvalidInput)
	}

	job := &Job{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Folder:      folder,
		Data:        data,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	s.store.Add(job)
	s.queue <- job

	s.log.Info().
		Str("job_id", job.ID).
		Str("filename", filename).
		Str("content_type", contentType).
		Int("size", len(data)).
		Msg("Job submitted")

	return job.ID, nil
}

// Status returns the polling snapshot for a job ID.
func (s *Service) Status(id string) (*JobStatus, error) {
	return s.store.Status(id)
}

func (s *Service) worker(workerID int) {
	defer s.wg.Done()

	log := s.log.With().Int("worker", workerID).Logger()
	log.Debug().Msg("Worker started")

	for job := range s.queue {
		s.process(job)
	}

	log.Debug().Msg("Worker stopped")
}

// process drives one job to a terminal state. Transient failures re-run the
// whole stage sequence after a fixed backoff, up to the attempt bound;
// fatal failures finalize immediately.
func (s *Service) process(job *Job) {
	log := logger.WithJobID(job.ID)
	log.Info().Str("filename", job.Filename).Msg("Processing job")

	err := retry.Do(
		func() error {
			return s.runStages(job)
		},
		retry.Attempts(uint(s.cfg.RetryAttempts)),
		retry.Delay(s.cfg.RetryBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsTransient),
		retry.OnRetry(func(attempt uint, err error) {
			s.store.SetStatus(job, StatusRetrying)
			log.Warn().
				Err(err).
				Uint("attempt", attempt+1).
				Int("max_attempts", s.cfg.RetryAttempts).
				Msg("Transient failure, retrying job")
		}),
	)
	if err != nil {
		stage := stageOf(err)
		message := err.Error()
		var se *StageError
		if errors.As(err, &se) {
			message = se.Err.Error()
		}
		s.store.Fail(job, stage, message)
		log.Error().
			Err(err).
			Str("stage", stage).
			Msg("Job failed")
		return
	}

	log.Info().
		Str("exam_paper_id", job.Result.ExamPaperID).
		Int("extracted_text_length", job.Result.ExtractedTextLength).
		Msg("Job completed")
}
