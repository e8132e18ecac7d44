package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mjuillard/veil/core/redact"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
	loadSql "github.com/mjuillard/veil/sql"
)

// OperationsDBHandlerFunctions defines the interface for audit trail database operations.
type OperationsDBHandlerFunctions interface {
	InsertOperation(operation *model.Operation) error
	SelectOperation(id uuid.UUID) (*model.Operation, error)
	SelectRecentOperations(limit int) ([]*model.Operation, error)
	CountOperations() (int, error)
}

// OperationsDBHandler handles audit trail database operations.
// The trail is append only, there is no update or delete. Error summaries
// are scrubbed before they are written so no real name survives in the log.
type OperationsDBHandler struct {
	db *helper.Database
}

// NewOperationsDBHandler creates a new operations database handler.
// It loads the audit trail schema.
// If force is true, it will reload the schema even if it already exists.
func NewOperationsDBHandler(db *helper.Database, force bool) (*OperationsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	operationsDbHandler := &OperationsDBHandler{
		db: db,
	}

	err := loadSql.LoadOperationsSql(operationsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load operations sql", err)
	}

	db.Logger.Info("Initialized OperationsDBHandler")

	return operationsDbHandler, nil
}

// InsertOperation appends an operation record to the audit trail.
func (h *OperationsDBHandler) InsertOperation(operation *model.Operation) error {
	if operation.ID == uuid.Nil {
		operation.ID = uuid.New()
	}
	if operation.CreatedAt.IsZero() {
		operation.CreatedAt = time.Now()
	}

	_, err := h.db.Instance.Exec(
		`INSERT INTO operations
		(id, operation_type, theme, model_name, model_version, files_processed,
		entity_count, new_entities, duration_ms, success, error_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		operation.ID.String(),
		string(operation.Type),
		operation.Theme,
		operation.ModelName,
		operation.ModelVersion,
		operation.Files,
		operation.EntityCount,
		operation.NewEntities,
		operation.Duration.Milliseconds(),
		operation.Success,
		redact.Message(operation.ErrorSummary),
		operation.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// SelectOperation retrieves an operation record by ID.
func (h *OperationsDBHandler) SelectOperation(id uuid.UUID) (*model.Operation, error) {
	row := h.db.Instance.QueryRow(
		selectOperationQuery+` WHERE id = ?`,
		id.String(),
	)

	operation, err := h.scanOperation(row)
	if err != nil {
		return nil, err
	}

	return operation, nil
}

// SelectRecentOperations retrieves the most recent operation records, newest first.
func (h *OperationsDBHandler) SelectRecentOperations(limit int) ([]*model.Operation, error) {
	rows, err := h.db.Instance.Query(
		selectOperationQuery+` ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var operations []*model.Operation
	for rows.Next() {
		operation, err := h.scanOperation(rows)
		if err != nil {
			return nil, err
		}

		operations = append(operations, operation)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return operations, nil
}

// CountOperations counts all operation records in the audit trail.
func (h *OperationsDBHandler) CountOperations() (int, error) {
	var count int
	err := h.db.Instance.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

const selectOperationQuery = `SELECT id, operation_type, theme, model_name, model_version, files_processed,
	entity_count, new_entities, duration_ms, success, error_summary, created_at
	FROM operations`

func (h *OperationsDBHandler) scanOperation(row rowScanner) (*model.Operation, error) {
	operation := &model.Operation{}
	var (
		id         string
		durationMs int64
		createdAt  string
	)

	err := row.Scan(
		&id,
		&operation.Type,
		&operation.Theme,
		&operation.ModelName,
		&operation.ModelVersion,
		&operation.Files,
		&operation.EntityCount,
		&operation.NewEntities,
		&durationMs,
		&operation.Success,
		&operation.ErrorSummary,
		&createdAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	operation.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, helper.NewError("parse id", err)
	}

	operation.Duration = time.Duration(durationMs) * time.Millisecond
	operation.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, helper.NewError("parse created at", err)
	}

	return operation, nil
}
