package storage

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CheckpointScheduler periodically calls BufferPool.FlushAllPages on a
// cron schedule, but only when the pool is quiescent. FlushAllPages
// breaks NO-STEAL if it runs mid-transaction, so the scheduler checks
// ActiveTransactionCount before every tick and skips the run otherwise
// rather than guessing at safer flush semantics.
type CheckpointScheduler struct {
	mu      sync.Mutex
	pool    *BufferPool
	catalog *CatalogManager
	jobName string
	cron    *cron.Cron
	entryID cron.EntryID
	skipped uint64
	ran     uint64
}

// NewCheckpointScheduler builds a scheduler for pool that fires on the
// given standard 5-field cron spec (e.g. "*/5 * * * *" for every five
// minutes). It registers itself as a CatalogJob under jobName so the
// schedule is visible through the catalog's job introspection, and
// updates that job's run bookkeeping on every tick that flushes
// successfully (skipped or failed ticks leave it unchanged). It does not start
// until Start is called.
func NewCheckpointScheduler(pool *BufferPool, catalog *CatalogManager, jobName, spec string) (*CheckpointScheduler, error) {
	cs := &CheckpointScheduler{
		pool:    pool,
		catalog: catalog,
		jobName: jobName,
		cron:    cron.New(),
	}
	id, err := cs.cron.AddFunc(spec, cs.tick)
	if err != nil {
		return nil, err
	}
	cs.entryID = id

	if catalog != nil {
		if err := catalog.RegisterJob(&CatalogJob{
			Name:         jobName,
			ScheduleType: "CRON",
			CronExpr:     spec,
			Enabled:      true,
		}); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

// Start launches the cron scheduler's own goroutine.
func (cs *CheckpointScheduler) Start() {
	cs.cron.Start()
}

// Stop halts the scheduler, waits for any in-flight tick to finish, and
// unregisters its CatalogJob: a stopped scheduler no longer owns a live
// schedule, so the job entry should not linger in catalog introspection.
func (cs *CheckpointScheduler) Stop() {
	ctx := cs.cron.Stop()
	<-ctx.Done()

	if cs.catalog != nil {
		if err := cs.catalog.DeleteJob(cs.jobName); err != nil {
			log.Printf("checkpoint: delete job %q on stop: %v", cs.jobName, err)
		}
	}
}

// jobStillEnabled reports whether cs.jobName is still present among the
// catalog's enabled jobs. SetJobEnabled lets an operator disable the job
// without touching the underlying cron entry; tick honors that by
// skipping the run instead of flushing.
func (cs *CheckpointScheduler) jobStillEnabled() bool {
	if cs.catalog == nil {
		return true
	}
	for _, job := range cs.catalog.ListEnabledJobs() {
		if job.Name == cs.jobName {
			return true
		}
	}
	return false
}

func (cs *CheckpointScheduler) tick() {
	if !cs.jobStillEnabled() {
		cs.mu.Lock()
		cs.skipped++
		cs.mu.Unlock()
		log.Printf("checkpoint: skipped, job %q disabled", cs.jobName)
		return
	}

	if cs.pool.ActiveTransactionCount() != 0 {
		cs.mu.Lock()
		cs.skipped++
		cs.mu.Unlock()
		log.Printf("checkpoint: skipped, %d active transactions", cs.pool.ActiveTransactionCount())
		return
	}

	if err := cs.pool.FlushAllPages(); err != nil {
		log.Printf("checkpoint: flush_all_pages failed: %v", err)
		return
	}
	cs.mu.Lock()
	cs.ran++
	cs.mu.Unlock()

	if cs.catalog != nil {
		now := time.Now()
		if err := cs.catalog.UpdateJobRuntime(cs.jobName, now, now); err != nil {
			log.Printf("checkpoint: update job runtime failed: %v", err)
		}
	}
}

// CheckpointStats reports how many scheduled ticks ran versus were
// skipped, either because the job was disabled or because transactions
// were in flight.
type CheckpointStats struct {
	Ran     uint64
	Skipped uint64
}

// Stats returns a snapshot of the scheduler's run/skip counters.
func (cs *CheckpointScheduler) Stats() CheckpointStats {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return CheckpointStats{Ran: cs.ran, Skipped: cs.skipped}
}
