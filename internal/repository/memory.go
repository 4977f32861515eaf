package repository

import (
	"fmt"
	"sync"

	"veritas/domain/core"
	"veritas/domain/quality"
	"veritas/internal/testkit"
)

// MemoryRepository serves the mock LIMS dataset from memory. Sample and
// stability data are immutable after seeding; deviations and the audit
// trail mutate under a lock. Readers get copies, never internal slices.
type MemoryRepository struct {
	mu sync.RWMutex

	hplc      []quality.SampleRecord
	stability []quality.StabilityRecord

	deviations []quality.Deviation
	devSeq     int

	audit []quality.AuditEntry
}

// NewMemoryRepository seeds a repository from the generator.
func NewMemoryRepository(gen *testkit.LIMSGenerator) *MemoryRepository {
	deviations := gen.GenerateDeviations()
	return &MemoryRepository{
		hplc:       gen.GenerateHPLCRecords(),
		stability:  gen.GenerateStabilityRecords(),
		deviations: deviations,
		devSeq:     len(deviations),
		audit:      gen.GenerateAuditEntries(300),
	}
}

// HPLCRecords returns a copy of the QC sample dataset.
func (r *MemoryRepository) HPLCRecords() []quality.SampleRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]quality.SampleRecord, len(r.hplc))
	copy(out, r.hplc)
	return out
}

// StabilityRecords returns a copy of the stability dataset.
func (r *MemoryRepository) StabilityRecords() []quality.StabilityRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]quality.StabilityRecord, len(r.stability))
	copy(out, r.stability)
	return out
}

// Deviations returns a copy of the deviation backlog.
func (r *MemoryRepository) Deviations() []quality.Deviation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]quality.Deviation, len(r.deviations))
	copy(out, r.deviations)
	return out
}

// Deviation looks up one deviation by id.
func (r *MemoryRepository) Deviation(id core.DeviationID) (quality.Deviation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.deviations {
		if d.ID == id {
			return d, nil
		}
	}
	return quality.Deviation{}, fmt.Errorf("%w: %s", core.ErrDeviationNotFound, id)
}

// CreateDeviation files a new deviation in the Open state and returns it.
func (r *MemoryRepository) CreateDeviation(title, linkedRecord string, priority quality.Priority) (quality.Deviation, error) {
	if title == "" {
		return quality.Deviation{}, core.NewInvalidInputError("title", "cannot be empty")
	}
	if priority == "" {
		priority = quality.PriorityMedium
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.devSeq++
	now := core.Now()
	dev := quality.Deviation{
		ID:           core.DeviationID(fmt.Sprintf("DEV-%03d", r.devSeq)),
		Title:        title,
		Status:       quality.StatusOpen,
		Priority:     priority,
		LinkedRecord: linkedRecord,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.deviations = append(r.deviations, dev)
	return dev, nil
}

// UpdateDeviationStatus moves a deviation to a new workflow state.
func (r *MemoryRepository) UpdateDeviationStatus(id core.DeviationID, status quality.DeviationStatus) (quality.Deviation, error) {
	if !quality.ValidStatus(status) {
		return quality.Deviation{}, fmt.Errorf("%w: %q", core.ErrInvalidTransition, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.deviations {
		if d.ID == id {
			if d.Status == quality.StatusClosed {
				return quality.Deviation{}, fmt.Errorf("%w: deviation %s is closed", core.ErrInvalidTransition, id)
			}
			r.deviations[i].Status = status
			r.deviations[i].UpdatedAt = core.Now()
			return r.deviations[i], nil
		}
	}
	return quality.Deviation{}, fmt.Errorf("%w: %s", core.ErrDeviationNotFound, id)
}

// AuditLog returns a copy of the audit trail.
func (r *MemoryRepository) AuditLog() []quality.AuditEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]quality.AuditEntry, len(r.audit))
	copy(out, r.audit)
	return out
}

// WriteAuditLog appends one audit trail row. The trail is append-only;
// nothing in the repository can modify or remove an entry once written.
func (r *MemoryRepository) WriteAuditLog(user, action, details, recordID string) {
	if recordID == "" {
		recordID = "N/A"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audit = append(r.audit, quality.AuditEntry{
		ID:        core.NewID(),
		Timestamp: core.Now(),
		User:      user,
		Action:    action,
		Details:   details,
		RecordID:  recordID,
	})
}
