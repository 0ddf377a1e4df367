// This file implements a lightweight in-memory system catalog used for
// checkpoint-job scheduling metadata and the table_id -> DbFile registry
// the cache uses to resolve a page miss into an on-disk read.
package storage

import (
	"fmt"
	"sync"
	"time"
)

// ==================== System Catalog ====================
// Provides metadata for scheduled jobs and the page-miss file registry.

// CatalogManager tracks scheduled-job metadata (`CatalogJob`) and the
// table_id -> DbFile registry, and provides thread-safe registration and
// lookup helpers. CatalogManager is safe for concurrent use.
type CatalogManager struct {
	mu    sync.RWMutex
	jobs  map[string]*CatalogJob
	files map[int32]DbFile
}

// NewCatalogManager allocates and returns an initialized CatalogManager.
func NewCatalogManager() *CatalogManager {
	return &CatalogManager{
		jobs:  make(map[string]*CatalogJob),
		files: make(map[int32]DbFile),
	}
}

// RegisterFile binds a table id to the DbFile that backs it. GetPage
// consults this registry on every cache miss.
func (c *CatalogManager) RegisterFile(tableID int32, f DbFile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[tableID] = f
}

// GetFile returns the DbFile registered for tableID, or ErrUnknownTable
// if none was registered.
func (c *CatalogManager) GetFile(tableID int32) (DbFile, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.files[tableID]
	if !ok {
		return nil, ErrUnknownTable
	}
	return f, nil
}

// CatalogJob describes a scheduled job: its schedule and the runtime
// bookkeeping the scheduler records on each tick.
type CatalogJob struct {
	Name         string
	ScheduleType string // 'CRON'
	CronExpr     string
	Enabled      bool
	LastRunAt    *time.Time
	NextRunAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ==================== Catalog Operations ====================

// RegisterJob adds a new scheduled job or updates an existing entry.
// Job names must be non-empty.
func (c *CatalogManager) RegisterJob(job *CatalogJob) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job.Name == "" {
		return fmt.Errorf("job name cannot be empty")
	}

	job.UpdatedAt = time.Now()
	if c.jobs[job.Name] == nil {
		job.CreatedAt = time.Now()
	}

	c.jobs[job.Name] = job
	return nil
}

// GetJob retrieves a job by name, returning an error if not found.
func (c *CatalogManager) GetJob(name string) (*CatalogJob, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	job, ok := c.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}
	return job, nil
}

// ListJobs returns a slice containing all registered jobs.
func (c *CatalogManager) ListJobs() []*CatalogJob {
	c.mu.RLock()
	defer c.mu.RUnlock()

	jobs := make([]*CatalogJob, 0, len(c.jobs))
	for _, job := range c.jobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// ListEnabledJobs returns only jobs whose `Enabled` flag is true.
func (c *CatalogManager) ListEnabledJobs() []*CatalogJob {
	c.mu.RLock()
	defer c.mu.RUnlock()

	jobs := make([]*CatalogJob, 0)
	for _, job := range c.jobs {
		if job.Enabled {
			jobs = append(jobs, job)
		}
	}
	return jobs
}

// SetJobEnabled flips a job's Enabled flag. CheckpointScheduler.tick
// consults ListEnabledJobs before every run, so disabling a job here
// takes effect on the job's next scheduled tick without touching the
// underlying cron entry.
func (c *CatalogManager) SetJobEnabled(name string, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	job.Enabled = enabled
	job.UpdatedAt = time.Now()
	return nil
}

// UpdateJobRuntime updates runtime bookkeeping fields for a named job.
// It sets `LastRunAt`, `NextRunAt` and marks the job as recently updated.
func (c *CatalogManager) UpdateJobRuntime(name string, lastRun, nextRun time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}

	job.LastRunAt = &lastRun
	job.NextRunAt = &nextRun
	job.UpdatedAt = time.Now()
	return nil
}

// DeleteJob removes a job from the catalog, returning an error when the
// job does not exist.
func (c *CatalogManager) DeleteJob(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.jobs[name]; !ok {
		return fmt.Errorf("job %q not found", name)
	}

	delete(c.jobs, name)
	return nil
}
