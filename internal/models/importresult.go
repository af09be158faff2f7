package models

import (
	"github.com/google/uuid"
)

// Stages an item can fail at during an import run
const (
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

// ImportError identifies one rejected source item and why it was rejected.
type ImportError struct {
	Title      string `json:"title"`
	ExternalID string `json:"externalId,omitempty"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
}

// ImportResult is the immutable summary of one import run. Per-item failures
// land in Errors; they never abort the run.
type ImportResult struct {
	Created    int           `json:"created"`
	CreatedIDs []uuid.UUID   `json:"createdIds"`
	Skipped    int           `json:"skipped"`
	Errors     []ImportError `json:"errors,omitempty"`
}
