package download

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ytfetch/ytfetch/internal/backoff"
	"github.com/ytfetch/ytfetch/internal/model"
	"github.com/ytfetch/ytfetch/internal/planner"
	"github.com/ytfetch/ytfetch/internal/registry"
	"github.com/ytfetch/ytfetch/internal/ytdlp"
)

// Retry tuning defaults
const (
	// DefaultMaxTransientRetries is how many times one attempt is
	// invoked before the engine moves on to the next attempt.
	DefaultMaxTransientRetries = 3

	// DefaultBaseDelay is the linear backoff base between transient
	// retries of the same attempt.
	DefaultBaseDelay = 5 * time.Second
)

// retrier drives a planned attempt sequence through the extraction
// engine. Attempts run strictly in order; the first success wins.
type retrier struct {
	extractor           Extractor
	registry            *registry.Registry
	strategy            backoff.Strategy
	maxTransientRetries int

	// sleep is injectable so tests do not wait out real backoff delays
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetrier(extractor Extractor, reg *registry.Registry, baseDelay time.Duration, maxRetries int) *retrier {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxTransientRetries
	}
	return &retrier{
		extractor:           extractor,
		registry:            reg,
		strategy:            backoff.NewLinear(baseDelay, 0),
		maxTransientRetries: maxRetries,
		sleep:               sleepContext,
	}
}

// run tries each attempt in order and returns the raw file path of the
// first success. Transient failures are retried in place with linear
// backoff; anything else escalates to the next attempt immediately. When
// every attempt is exhausted the returned error aggregates the last
// failure of each attempt.
func (r *retrier) run(ctx context.Context, job model.Job, attempts []planner.AttemptSpec, outputDir string, onProgress func(model.RawProgress)) (string, error) {
	if len(attempts) == 0 {
		return "", errors.New("empty attempt plan")
	}

	failures := make([]string, 0, len(attempts))
	for i, attempt := range attempts {
		index := i
		if err := r.registry.Update(job.ID, model.JobUpdate{AttemptIndex: &index}); err != nil {
			return "", errors.Wrap(err, "record attempt index")
		}
		log.Printf("job %s: attempt %d/%d: %s", job.ID, i+1, len(attempts), attempt.Description)

		path, err := r.runAttempt(ctx, job, attempt, outputDir, onProgress)
		if err == nil {
			return path, nil
		}
		if ctx.Err() != nil {
			return "", errors.Wrap(err, "download aborted")
		}
		log.Printf("job %s: attempt %q failed: %v", job.ID, attempt.Description, err)
		failures = append(failures, fmt.Sprintf("[%s] %v", attempt.Description, err))
	}

	return "", errors.Errorf("all %d attempts failed: %s", len(attempts), strings.Join(failures, "; "))
}

// runAttempt invokes the engine up to maxTransientRetries times for a
// single attempt, waiting n*base before the n-th retry.
func (r *retrier) runAttempt(ctx context.Context, job model.Job, attempt planner.AttemptSpec, outputDir string, onProgress func(model.RawProgress)) (string, error) {
	req := ytdlp.DownloadRequest{
		URL:            job.SourceURL,
		OutputDir:      outputDir,
		Selector:       attempt.Selector,
		MergeContainer: attempt.MergeContainer,
		ExtractAudio:   attempt.ExtractAudio,
		AudioFormat:    attempt.AudioFormat,
		AudioQuality:   attempt.AudioQuality,
	}

	var lastErr error
	for try := 0; try < r.maxTransientRetries; try++ {
		if try > 0 {
			delay := r.strategy.Delay(try)
			log.Printf("job %s: transient failure, retry %d in %s", job.ID, try, delay)
			if err := r.sleep(ctx, delay); err != nil {
				return "", err
			}
		}

		path, err := r.extractor.Download(ctx, req, onProgress)
		if err == nil {
			return path, nil
		}
		lastErr = err

		if !ytdlp.IsTransient(err) {
			// Permanent for this attempt; let the next strategy try.
			return "", lastErr
		}
	}
	return "", lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
