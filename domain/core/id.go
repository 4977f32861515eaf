package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	DeviationID ID
	ReportID    ID
	SampleID    ID
	LotID       ID
)

func (id DeviationID) String() string { return ID(id).String() }
func (id ReportID) String() string    { return ID(id).String() }
func (id SampleID) String() string    { return ID(id).String() }
func (id LotID) String() string       { return ID(id).String() }

// ParseDeviationID parses a string into DeviationID
func ParseDeviationID(s string) (DeviationID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("deviation ID cannot be empty")
	}
	return DeviationID(s), nil
}

// ParseSampleID parses a string into SampleID
func ParseSampleID(s string) (SampleID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("sample ID cannot be empty")
	}
	return SampleID(s), nil
}
