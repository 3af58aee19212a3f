// Package progress throttles and deduplicates raw download progress before
// it reaches the notification channel.
package progress

import (
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/ytfetch/ytfetch/internal/model"
	"github.com/ytfetch/ytfetch/internal/registry"
)

const (
	// ForwardThreshold is the minimum percent jump between forwarded
	// events; it bounds notification volume per job.
	ForwardThreshold = 10.0

	// EventDownloadStatus is the notification event name for progress
	EventDownloadStatus = "download_status"
)

// Notifier is the external notification channel. Delivery is best-effort
// and fire-and-forget.
type Notifier interface {
	Publish(event string, data any)
}

// Update is the payload forwarded for an accepted progress event.
type Update struct {
	JobID   string  `json:"job_id"`
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Percent float64 `json:"percent"`
}

// Reporter forwards accepted progress events to the notifier, keeping
// per-job state to suppress near-duplicate percentages.
type Reporter struct {
	mu       sync.Mutex
	last     map[string]float64
	notifier Notifier
	registry *registry.Registry
}

// NewReporter creates a reporter publishing through notifier and mirroring
// the last forwarded percent into the job registry.
func NewReporter(notifier Notifier, reg *registry.Registry) *Reporter {
	return &Reporter{
		last:     make(map[string]float64),
		notifier: notifier,
		registry: reg,
	}
}

// OnRawProgress handles one event from the extraction engine. It never
// returns an error and never panics: progress reporting must not take the
// download down with it.
func (r *Reporter) OnRawProgress(jobID string, ev model.RawProgress) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("progress reporting for job %s failed: %v", jobID, rec)
		}
	}()

	percent := round2(ev.Percent())

	if ev.Status == model.ProgressStatusFinished {
		// Completion is always forwarded and resets the dedup state.
		r.mu.Lock()
		delete(r.last, jobID)
		r.mu.Unlock()
		r.forward(jobID, model.ProgressStatusFinished, 100)
		return
	}

	r.mu.Lock()
	last, seen := r.last[jobID]
	accept := !seen || math.Abs(percent-last) >= ForwardThreshold
	if accept {
		r.last[jobID] = percent
	}
	r.mu.Unlock()

	if accept {
		r.forward(jobID, model.ProgressStatusDownloading, percent)
	}
}

func (r *Reporter) forward(jobID, status string, percent float64) {
	r.notifier.Publish(EventDownloadStatus, Update{
		JobID:   jobID,
		Status:  status,
		Message: fmt.Sprintf("%s %.2f%%", status, percent),
		Percent: percent,
	})
	if err := r.registry.Update(jobID, model.JobUpdate{LastProgressPercent: &percent}); err != nil {
		log.Printf("record progress for job %s: %v", jobID, err)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
