// Package registry provides the concurrency-safe in-memory store of job state.
package registry

import (
	"fmt"
	"sync"

	"github.com/ytfetch/ytfetch/internal/model"
)

// Registry holds all jobs for the lifetime of the process. Every access
// goes through a single mutex; the lock is never held across I/O.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		jobs: make(map[string]*model.Job),
	}
}

// Create stores a new job. It fails if the ID is already taken.
func (r *Registry) Create(job model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job already exists: %s", job.ID)
	}
	stored := job
	r.jobs[job.ID] = &stored
	return nil
}

// Update applies a partial update to a stored job. Fields left nil in the
// update preserve the stored values.
func (r *Registry) Update(id string, update model.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.AttemptIndex != nil {
		job.AttemptIndex = *update.AttemptIndex
	}
	if update.RawFilepath != nil {
		job.RawFilepath = *update.RawFilepath
	}
	if update.FinalFilepath != nil {
		job.FinalFilepath = *update.FinalFilepath
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	if update.LastProgressPercent != nil {
		job.LastProgressPercent = *update.LastProgressPercent
	}
	if update.FinishedAt != nil {
		job.FinishedAt = update.FinishedAt
	}
	return nil
}

// Get returns a copy of the job so callers never observe a torn state
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[id]
	if !exists {
		return model.Job{}, false
	}
	return *job, true
}

// All returns copies of every stored job
func (r *Registry) All() []model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs
}
