package repository

import (
	"errors"
	"sync"
	"testing"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/internal/testkit"
)

func newTestRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	cfg := testkit.DefaultLIMSConfig()
	cfg.SampleCount = 40
	return NewMemoryRepository(testkit.NewLIMSGenerator(cfg))
}

func TestMemoryRepository_Seeding(t *testing.T) {
	repo := newTestRepo(t)

	if len(repo.HPLCRecords()) != 40 {
		t.Errorf("hplc records = %d, want 40", len(repo.HPLCRecords()))
	}
	if len(repo.StabilityRecords()) == 0 {
		t.Error("stability dataset empty")
	}
	if len(repo.Deviations()) != 4 {
		t.Errorf("seeded deviations = %d, want 4", len(repo.Deviations()))
	}
	if len(repo.AuditLog()) == 0 {
		t.Error("audit trail empty")
	}
}

func TestMemoryRepository_ReadersGetCopies(t *testing.T) {
	repo := newTestRepo(t)

	records := repo.HPLCRecords()
	original := records[0].SampleID
	records[0].SampleID = "TAMPERED"

	if repo.HPLCRecords()[0].SampleID != original {
		t.Error("mutating a returned slice must not affect the repository")
	}
}

func TestMemoryRepository_DeviationLifecycle(t *testing.T) {
	repo := newTestRepo(t)

	dev, err := repo.CreateDeviation("OOS Result for SMP-1042", "SMP-1042", quality.PriorityHigh)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dev.ID != "DEV-005" {
		t.Errorf("id = %s, want sequential DEV-005 after the 4 seeded rows", dev.ID)
	}
	if dev.Status != quality.StatusOpen {
		t.Errorf("new deviation status = %s, want Open", dev.Status)
	}

	got, err := repo.Deviation(dev.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Title != dev.Title {
		t.Errorf("lookup returned %+v", got)
	}

	updated, err := repo.UpdateDeviationStatus(dev.ID, quality.StatusClosed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != quality.StatusClosed {
		t.Errorf("status = %s, want Closed", updated.Status)
	}

	// Closed is terminal.
	if _, err := repo.UpdateDeviationStatus(dev.ID, quality.StatusOpen); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("reopening a closed deviation: got %v, want invalid transition", err)
	}
}

func TestMemoryRepository_DeviationErrors(t *testing.T) {
	repo := newTestRepo(t)

	if _, err := repo.CreateDeviation("", "SMP-1", quality.PriorityLow); !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("empty title: got %v", err)
	}
	if _, err := repo.Deviation("DEV-999"); !errors.Is(err, core.ErrDeviationNotFound) {
		t.Errorf("unknown id: got %v", err)
	}
	if _, err := repo.UpdateDeviationStatus("DEV-999", quality.StatusOpen); !errors.Is(err, core.ErrDeviationNotFound) {
		t.Errorf("update unknown id: got %v", err)
	}
	if _, err := repo.UpdateDeviationStatus("DEV-001", "Bogus"); !errors.Is(err, core.ErrInvalidTransition) {
		t.Errorf("invalid status: got %v", err)
	}
}

func TestMemoryRepository_AuditAppendOnly(t *testing.T) {
	repo := newTestRepo(t)
	before := len(repo.AuditLog())

	repo.WriteAuditLog("jsmith", "run_analysis", "capability sweep", "")

	log := repo.AuditLog()
	if len(log) != before+1 {
		t.Fatalf("audit log grew by %d, want 1", len(log)-before)
	}
	last := log[len(log)-1]
	if last.User != "jsmith" || last.Action != "run_analysis" {
		t.Errorf("unexpected entry: %+v", last)
	}
	if last.RecordID != "N/A" {
		t.Errorf("empty record id should normalize to N/A, got %q", last.RecordID)
	}
	if last.ID.IsEmpty() {
		t.Error("audit entry missing id")
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := newTestRepo(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			repo.WriteAuditLog("jsmith", "view_dashboard", "", "")
		}()
		go func() {
			defer wg.Done()
			_ = repo.AuditLog()
			_ = repo.Deviations()
		}()
	}
	wg.Wait()

	if got := len(repo.AuditLog()); got < 8 {
		t.Errorf("expected at least 8 new audit rows, log size %d", got)
	}
}
