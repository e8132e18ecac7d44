package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType represents the kind of run an audit entry records
type OperationType string

const (
	OperationTypeProcess OperationType = "process"
	OperationTypeBatch   OperationType = "batch"
	OperationTypeDelete  OperationType = "delete"
)

// Operation represents one append-only audit trail entry. Entries never
// contain document text or real names; error summaries are sanitized
// before they get here.
type Operation struct {
	ID           uuid.UUID     `json:"id"`
	Type         OperationType `json:"operation_type"`
	Theme        string        `json:"theme,omitempty"`
	ModelName    string        `json:"model_name,omitempty"`
	ModelVersion string        `json:"model_version,omitempty"`
	Files        int           `json:"files_processed"`
	EntityCount  int           `json:"entity_count"`
	NewEntities  int           `json:"new_entities"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	ErrorSummary string        `json:"error_summary,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
