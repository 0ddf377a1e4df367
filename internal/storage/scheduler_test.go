package storage

import (
	"path/filepath"
	"testing"
)

func TestCheckpointSchedulerSkipsWhileTransactionsActive(t *testing.T) {
	dir := t.TempDir()
	heap, err := NewHeapFile(filepath.Join(dir, "t1.heap"), 1, testDesc(), 4)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	catalog := NewCatalogManager()
	catalog.RegisterFile(1, heap)
	pool := NewBufferPool(DefaultBufferPoolConfig(), catalog, NullLogFile{})

	cs, err := NewCheckpointScheduler(pool, catalog, "test-checkpoint", "@every 1h")
	if err != nil {
		t.Fatalf("NewCheckpointScheduler: %v", err)
	}

	job, err := catalog.GetJob("test-checkpoint")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !job.Enabled || job.ScheduleType != "CRON" || job.CronExpr != "@every 1h" {
		t.Fatalf("unexpected registered job: %+v", job)
	}
	if job.LastRunAt != nil {
		t.Fatal("expected no run recorded before the first tick")
	}

	row := NewTuple(testDesc(), IntField(1), StringField("a"))
	if err := pool.InsertTuple(1, 1, row); err != nil {
		t.Fatalf("InsertTuple: %v", err)
	}
	// tid 1 is still "active" (TransactionComplete not yet called).

	cs.tick()
	stats := cs.Stats()
	if stats.Ran != 0 || stats.Skipped != 1 {
		t.Fatalf("expected the tick to be skipped while a transaction is active, got %+v", stats)
	}

	if err := pool.TransactionComplete(1, true); err != nil {
		t.Fatalf("TransactionComplete: %v", err)
	}

	cs.tick()
	stats = cs.Stats()
	if stats.Ran != 1 {
		t.Fatalf("expected the tick to run once the pool is quiescent, got %+v", stats)
	}

	job, err = catalog.GetJob("test-checkpoint")
	if err != nil {
		t.Fatalf("GetJob after tick: %v", err)
	}
	if job.LastRunAt == nil {
		t.Fatal("expected LastRunAt to be recorded after a successful checkpoint")
	}
}

func TestCheckpointSchedulerSkipsWhenJobDisabled(t *testing.T) {
	dir := t.TempDir()
	heap, err := NewHeapFile(filepath.Join(dir, "t1.heap"), 1, testDesc(), 4)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	catalog := NewCatalogManager()
	catalog.RegisterFile(1, heap)
	pool := NewBufferPool(DefaultBufferPoolConfig(), catalog, NullLogFile{})

	cs, err := NewCheckpointScheduler(pool, catalog, "test-checkpoint", "@every 1h")
	if err != nil {
		t.Fatalf("NewCheckpointScheduler: %v", err)
	}

	if err := catalog.SetJobEnabled("test-checkpoint", false); err != nil {
		t.Fatalf("SetJobEnabled: %v", err)
	}

	cs.tick()
	stats := cs.Stats()
	if stats.Ran != 0 || stats.Skipped != 1 {
		t.Fatalf("expected tick to skip a disabled job, got %+v", stats)
	}

	if err := catalog.SetJobEnabled("test-checkpoint", true); err != nil {
		t.Fatalf("SetJobEnabled re-enable: %v", err)
	}
	cs.tick()
	stats = cs.Stats()
	if stats.Ran != 1 {
		t.Fatalf("expected tick to run once re-enabled, got %+v", stats)
	}
}

func TestCheckpointSchedulerStopDeletesJob(t *testing.T) {
	dir := t.TempDir()
	heap, err := NewHeapFile(filepath.Join(dir, "t1.heap"), 1, testDesc(), 4)
	if err != nil {
		t.Fatalf("NewHeapFile: %v", err)
	}
	catalog := NewCatalogManager()
	catalog.RegisterFile(1, heap)
	pool := NewBufferPool(DefaultBufferPoolConfig(), catalog, NullLogFile{})

	cs, err := NewCheckpointScheduler(pool, catalog, "test-checkpoint", "@every 1h")
	if err != nil {
		t.Fatalf("NewCheckpointScheduler: %v", err)
	}
	cs.Start()
	cs.Stop()

	if _, err := catalog.GetJob("test-checkpoint"); err == nil {
		t.Fatal("expected Stop to remove the job from the catalog")
	}
}
