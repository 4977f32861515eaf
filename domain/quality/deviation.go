package quality

import (
	"veritas/domain/core"
)

// DeviationStatus is a kanban state in the deviation workflow.
type DeviationStatus string

const (
	StatusOpen        DeviationStatus = "Open"
	StatusInProgress  DeviationStatus = "In Progress"
	StatusUnderReview DeviationStatus = "Under Review"
	StatusClosed      DeviationStatus = "Closed"
)

// KanbanStates is the ordered set of workflow states.
var KanbanStates = []DeviationStatus{StatusOpen, StatusInProgress, StatusUnderReview, StatusClosed}

// ValidStatus reports whether s is a known workflow state.
func ValidStatus(s DeviationStatus) bool {
	for _, k := range KanbanStates {
		if k == s {
			return true
		}
	}
	return false
}

// Priority ranks a deviation for triage.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Deviation is a tracked quality event (CAPA ticket). The analytics core
// never creates these directly; the service layer files them from
// discrepancy reports.
type Deviation struct {
	ID           core.DeviationID `json:"id"`
	Title        string           `json:"title"`
	Status       DeviationStatus  `json:"status"`
	Priority     Priority         `json:"priority"`
	LinkedRecord string           `json:"linked_record"`
	CreatedAt    core.Timestamp   `json:"created_at"`
	UpdatedAt    core.Timestamp   `json:"updated_at"`
}

// AuditEntry is one append-only audit trail row.
type AuditEntry struct {
	ID        core.ID        `json:"id"`
	Timestamp core.Timestamp `json:"timestamp"`
	User      string         `json:"user"`
	Action    string         `json:"action"`
	Details   string         `json:"details"`
	RecordID  string         `json:"record_id"`
}
