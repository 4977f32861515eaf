// Package repository abstracts the data source behind the repository
// pattern. The production system would back this with a validated LIMS
// database; this module ships only the in-memory implementation seeded from
// the mock generator, since live connectivity is outside the analytics
// core's responsibility.
package repository

import (
	"veritas/domain/core"
	"veritas/domain/quality"
)

// Repository is the contract every data source must fulfil for the
// dashboard services.
type Repository interface {
	HPLCRecords() []quality.SampleRecord
	StabilityRecords() []quality.StabilityRecord

	Deviations() []quality.Deviation
	Deviation(id core.DeviationID) (quality.Deviation, error)
	CreateDeviation(title, linkedRecord string, priority quality.Priority) (quality.Deviation, error)
	UpdateDeviationStatus(id core.DeviationID, status quality.DeviationStatus) (quality.Deviation, error)

	AuditLog() []quality.AuditEntry
	WriteAuditLog(user, action, details, recordID string)
}
