package storage

import "testing"

func TestCatalogManagerListJobs(t *testing.T) {
	c := NewCatalogManager()
	if got := c.ListJobs(); len(got) != 0 {
		t.Fatalf("expected no jobs initially, got %d", len(got))
	}

	if err := c.RegisterJob(&CatalogJob{Name: "a", ScheduleType: "CRON", Enabled: true}); err != nil {
		t.Fatalf("RegisterJob a: %v", err)
	}
	if err := c.RegisterJob(&CatalogJob{Name: "b", ScheduleType: "CRON", Enabled: false}); err != nil {
		t.Fatalf("RegisterJob b: %v", err)
	}

	all := c.ListJobs()
	if len(all) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(all))
	}

	enabled := c.ListEnabledJobs()
	if len(enabled) != 1 || enabled[0].Name != "a" {
		t.Fatalf("expected only job \"a\" enabled, got %+v", enabled)
	}
}

func TestCatalogManagerSetJobEnabled(t *testing.T) {
	c := NewCatalogManager()
	if err := c.RegisterJob(&CatalogJob{Name: "a", Enabled: true}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}

	if err := c.SetJobEnabled("a", false); err != nil {
		t.Fatalf("SetJobEnabled: %v", err)
	}
	if len(c.ListEnabledJobs()) != 0 {
		t.Fatal("expected no enabled jobs after disabling the only one")
	}

	if err := c.SetJobEnabled("a", true); err != nil {
		t.Fatalf("SetJobEnabled re-enable: %v", err)
	}
	if got := c.ListEnabledJobs(); len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("expected job \"a\" enabled again, got %+v", got)
	}

	if err := c.SetJobEnabled("missing", true); err == nil {
		t.Fatal("expected SetJobEnabled on an unregistered job to fail")
	}
}

func TestCatalogManagerDeleteJob(t *testing.T) {
	c := NewCatalogManager()
	if err := c.RegisterJob(&CatalogJob{Name: "a", Enabled: true}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}

	if err := c.DeleteJob("a"); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := c.GetJob("a"); err == nil {
		t.Fatal("expected GetJob to fail after DeleteJob")
	}
	if err := c.DeleteJob("a"); err == nil {
		t.Fatal("expected DeleteJob to fail on an already-deleted job")
	}
}
