package download

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ytfetch/ytfetch/internal/model"
	"github.com/ytfetch/ytfetch/internal/planner"
	"github.com/ytfetch/ytfetch/internal/postproc"
	"github.com/ytfetch/ytfetch/internal/progress"
	"github.com/ytfetch/ytfetch/internal/registry"
)

// Notification events emitted over the job lifecycle
const (
	EventDownloadStarted  = "download_started"
	EventDownloadComplete = "download_complete"
)

// Config carries the orchestrator's tunables.
type Config struct {
	// DownloadDir receives raw extraction output
	DownloadDir string

	// OutputDir receives normalized final artifacts
	OutputDir string

	// MaxTransientRetries and BaseDelay tune the retry engine; zero
	// values select the defaults.
	MaxTransientRetries int
	BaseDelay           time.Duration
}

// SubmitOptions are the caller's choices for one download request.
type SubmitOptions struct {
	// Format is an explicit encoding identifier. When set it is used
	// verbatim with no fallback.
	Format string

	// AudioOnly requests an audio-only artifact.
	AudioOnly bool
}

// startedPayload and completePayload are the notification bodies for the
// lifecycle events.
type startedPayload struct {
	JobID     string `json:"job_id"`
	SourceURL string `json:"source_url"`
}

type completePayload struct {
	JobID    string `json:"job_id"`
	Filepath string `json:"filepath"`
	Filename string `json:"filename"`
}

// Service composes the planner, retry engine, progress reporter and
// post-processor into the job lifecycle.
type Service struct {
	registry  *registry.Registry
	extractor Extractor
	processor Processor
	reporter  *progress.Reporter
	notifier  progress.Notifier
	retrier   *retrier
	cfg       Config

	mu       sync.Mutex
	watchers map[string]chan struct{}
}

// NewService wires the orchestrator. All collaborators are injected; the
// service owns no hidden global state.
func NewService(reg *registry.Registry, extractor Extractor, processor Processor, notifier progress.Notifier, cfg Config) *Service {
	return &Service{
		registry:  reg,
		extractor: extractor,
		processor: processor,
		reporter:  progress.NewReporter(notifier, reg),
		notifier:  notifier,
		retrier:   newRetrier(extractor, reg, cfg.BaseDelay, cfg.MaxTransientRetries),
		cfg:       cfg,
		watchers:  make(map[string]chan struct{}),
	}
}

// Inspect queries the extraction engine in metadata-only mode. It does
// not create a job and blocks for the duration of the fetch.
func (s *Service) Inspect(ctx context.Context, url string) (*model.VideoInfo, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("url is required")
	}
	return s.extractor.Inspect(ctx, url)
}

// Submit creates a job, schedules its background execution, and returns
// the job id immediately.
func (s *Service) Submit(url string, opts SubmitOptions) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", fmt.Errorf("url is required")
	}

	job := model.Job{
		ID:              generateJobID(),
		SourceURL:       url,
		RequestedFormat: opts.Format,
		AudioOnly:       opts.AudioOnly,
		Status:          model.JobStatusQueued,
		CreatedAt:       time.Now(),
	}
	if err := s.registry.Create(job); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.watchers[job.ID] = make(chan struct{})
	s.mu.Unlock()

	go s.runJob(job)

	return job.ID, nil
}

// Job returns a snapshot of one job
func (s *Service) Job(id string) (model.Job, bool) {
	return s.registry.Get(id)
}

// Jobs returns snapshots of all jobs
func (s *Service) Jobs() []model.Job {
	return s.registry.All()
}

// Wait returns a channel closed when the job reaches a terminal state.
// Unknown ids yield an already-closed channel.
func (s *Service) Wait(id string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, exists := s.watchers[id]; exists {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// runJob drives one job to a terminal state. Every failure is caught
// here and recorded in the registry; nothing escapes the task boundary.
func (s *Service) runJob(job model.Job) {
	defer s.signalDone(job.ID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("job %s: panic: %v", job.ID, rec)
			s.fail(job.ID, fmt.Errorf("internal error: %v", rec))
		}
	}()

	ctx := context.Background()

	s.setStatus(job.ID, model.JobStatusDownloading)
	s.notifier.Publish(EventDownloadStarted, startedPayload{JobID: job.ID, SourceURL: job.SourceURL})

	attempts := planner.Plan(job.RequestedFormat, job.AudioOnly)
	onProgress := func(ev model.RawProgress) {
		s.reporter.OnRawProgress(job.ID, ev)
	}

	rawPath, err := s.retrier.run(ctx, job, attempts, s.cfg.DownloadDir, onProgress)
	if err != nil {
		s.fail(job.ID, err)
		return
	}

	status := model.JobStatusDownloaded
	if err := s.registry.Update(job.ID, model.JobUpdate{Status: &status, RawFilepath: &rawPath}); err != nil {
		log.Printf("job %s: %v", job.ID, err)
	}
	log.Printf("job %s: downloaded %s", job.ID, rawPath)

	s.setStatus(job.ID, model.JobStatusProcessing)
	finalPath, err := s.processor.Normalize(ctx, rawPath, s.cfg.OutputDir, postproc.Options{
		JobID:     job.ID,
		AudioOnly: job.AudioOnly,
	})
	if err != nil {
		// The raw file is left in place for inspection.
		s.fail(job.ID, err)
		return
	}

	now := time.Now()
	done := model.JobStatusDone
	if err := s.registry.Update(job.ID, model.JobUpdate{Status: &done, FinalFilepath: &finalPath, FinishedAt: &now}); err != nil {
		log.Printf("job %s: %v", job.ID, err)
	}
	log.Printf("job %s: done %s", job.ID, finalPath)

	s.notifier.Publish(EventDownloadComplete, completePayload{
		JobID:    job.ID,
		Filepath: finalPath,
		Filename: postproc.HeaderFilename(finalPath),
	})
}

func (s *Service) setStatus(id string, status model.JobStatus) {
	if err := s.registry.Update(id, model.JobUpdate{Status: &status}); err != nil {
		log.Printf("job %s: %v", id, err)
	}
}

// fail records a terminal error and surfaces it through the notification
// channel.
func (s *Service) fail(id string, cause error) {
	log.Printf("job %s: failed: %v", id, cause)

	now := time.Now()
	status := model.JobStatusError
	msg := cause.Error()
	if err := s.registry.Update(id, model.JobUpdate{Status: &status, Error: &msg, FinishedAt: &now}); err != nil {
		log.Printf("job %s: %v", id, err)
	}

	s.notifier.Publish(progress.EventDownloadStatus, progress.Update{
		JobID:   id,
		Status:  string(model.JobStatusError),
		Message: msg,
	})
}

func (s *Service) signalDone(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, exists := s.watchers[id]; exists {
		close(ch)
	}
}

// generateJobID returns a time-ordered unique id, falling back to a
// timestamp when UUID generation fails.
func generateJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("job-%d", time.Now().UnixNano())
	}
	return id.String()
}
