package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mjuillard/veil/core/names"
	"github.com/mjuillard/veil/helper"
	"github.com/mjuillard/veil/model"
	loadSql "github.com/mjuillard/veil/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity mapping database operations.
type EntitiesDBHandlerFunctions interface {
	InsertEntity(entity *model.Entity) error
	InsertEntities(entities []*model.Entity) error
	DeleteEntity(id uuid.UUID) error
	SelectEntity(id uuid.UUID) (*model.Entity, error)
	SelectEntityByName(entityType model.EntityType, theme string, name string) (*model.Entity, error)
	SelectAllEntities(theme string) ([]*model.Entity, error)
	SelectEntitiesByType(entityType model.EntityType, theme string) ([]*model.Entity, error)
	CountEntities(theme string) (int, error)
}

// EntitiesDBHandler handles entity mapping database operations.
// Real names go through the store cipher on the way in and out, lookups
// run on the blind name key instead of the encrypted columns.
type EntitiesDBHandler struct {
	db     *helper.Database
	cipher *Cipher
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity mapping schema and wires the store cipher.
// If force is true, it will reload the schema even if it already exists.
func NewEntitiesDBHandler(db *helper.Database, cipher *Cipher, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if cipher == nil {
		return nil, helper.NewError("cipher validation", fmt.Errorf("store cipher is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db:     db,
		cipher: cipher,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// InsertEntity inserts a new entity mapping.
// Inserting the same real name twice for a theme and type violates the
// unique name key index, callers are expected to look the name up first.
func (h *EntitiesDBHandler) InsertEntity(entity *model.Entity) error {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = time.Now()
	}

	args, err := h.insertArgs(entity)
	if err != nil {
		return err
	}

	_, err = h.db.Instance.Exec(insertEntityQuery, args...)
	if err != nil {
		return helper.NewError("exec", err)
	}

	return nil
}

// InsertEntities inserts a batch of entity mappings in one transaction.
// Either all mappings land or none do.
func (h *EntitiesDBHandler) InsertEntities(entities []*model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := h.db.Instance.Begin()
	if err != nil {
		return helper.NewError("begin", err)
	}
	defer tx.Rollback()

	for _, entity := range entities {
		if entity.ID == uuid.Nil {
			entity.ID = uuid.New()
		}
		if entity.CreatedAt.IsZero() {
			entity.CreatedAt = time.Now()
		}

		args, err := h.insertArgs(entity)
		if err != nil {
			return err
		}

		_, err = tx.Exec(insertEntityQuery, args...)
		if err != nil {
			return helper.NewError("exec", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// DeleteEntity deletes an entity mapping by ID.
// Deleting an unknown ID is an error so callers can report it.
func (h *EntitiesDBHandler) DeleteEntity(id uuid.UUID) error {
	result, err := h.db.Instance.Exec(
		`DELETE FROM entities WHERE id = ?`,
		id.String(),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return helper.NewError("rows affected", err)
	}
	if affected == 0 {
		return helper.NewError("delete entity", fmt.Errorf("no entity with id %s", id))
	}

	return nil
}

// SelectEntity retrieves an entity mapping by ID.
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.Entity, error) {
	row := h.db.Instance.QueryRow(
		selectEntityQuery+` WHERE id = ?`,
		id.String(),
	)

	entity, err := h.scanEntity(row)
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// SelectEntityByName retrieves an entity mapping by real name, theme and type.
// The name is folded before the lookup so accents and casing do not split
// mappings. Returns nil without an error when no mapping exists.
func (h *EntitiesDBHandler) SelectEntityByName(entityType model.EntityType, theme string, name string) (*model.Entity, error) {
	nameKey := h.cipher.NameKey(theme, entityType, names.Fold(name))

	row := h.db.Instance.QueryRow(
		selectEntityQuery+` WHERE theme = ? AND entity_type = ? AND name_key = ?`,
		theme,
		string(entityType),
		nameKey,
	)

	entity, err := h.scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// SelectAllEntities retrieves all entity mappings for a theme, oldest first.
func (h *EntitiesDBHandler) SelectAllEntities(theme string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(
		selectEntityQuery+` WHERE theme = ? ORDER BY created_at ASC, id ASC`,
		theme,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity, err := h.scanEntity(rows)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectEntitiesByType retrieves entity mappings of one type for a theme, oldest first.
func (h *EntitiesDBHandler) SelectEntitiesByType(entityType model.EntityType, theme string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.Query(
		selectEntityQuery+` WHERE theme = ? AND entity_type = ? ORDER BY created_at ASC, id ASC`,
		theme,
		string(entityType),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity, err := h.scanEntity(rows)
		if err != nil {
			return nil, err
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// CountEntities counts the entity mappings stored for a theme.
func (h *EntitiesDBHandler) CountEntities(theme string) (int, error) {
	var count int
	err := h.db.Instance.QueryRow(
		`SELECT COUNT(*) FROM entities WHERE theme = ?`,
		theme,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

const insertEntityQuery = `INSERT INTO entities
	(id, entity_type, theme, name_key, full_name, first_name, last_name, gender,
	pseudonym_full, pseudonym_first, pseudonym_last, confidence, ambiguous, ambiguity_reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectEntityQuery = `SELECT id, entity_type, theme, full_name, first_name, last_name, gender,
	pseudonym_full, pseudonym_first, pseudonym_last, confidence, ambiguous, ambiguity_reason, created_at
	FROM entities`

func (h *EntitiesDBHandler) insertArgs(entity *model.Entity) ([]any, error) {
	if entity.Gender == "" {
		entity.Gender = model.GenderUnknown
	}

	fullName, err := h.cipher.Encrypt(entity.FullName)
	if err != nil {
		return nil, helper.NewError("encrypt full name", err)
	}
	firstName, err := h.cipher.Encrypt(entity.FirstName)
	if err != nil {
		return nil, helper.NewError("encrypt first name", err)
	}
	lastName, err := h.cipher.Encrypt(entity.LastName)
	if err != nil {
		return nil, helper.NewError("encrypt last name", err)
	}

	nameKey := h.cipher.NameKey(entity.Theme, entity.Type, names.Fold(entity.FullName))

	return []any{
		entity.ID.String(),
		string(entity.Type),
		entity.Theme,
		nameKey,
		fullName,
		firstName,
		lastName,
		string(entity.Gender),
		entity.PseudonymFull,
		entity.PseudonymFirst,
		entity.PseudonymLast,
		entity.Confidence,
		entity.Ambiguous,
		entity.AmbiguityReason,
		entity.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (h *EntitiesDBHandler) scanEntity(row rowScanner) (*model.Entity, error) {
	entity := &model.Entity{}
	var (
		id        string
		fullName  []byte
		firstName []byte
		lastName  []byte
		createdAt string
	)

	err := row.Scan(
		&id,
		&entity.Type,
		&entity.Theme,
		&fullName,
		&firstName,
		&lastName,
		&entity.Gender,
		&entity.PseudonymFull,
		&entity.PseudonymFirst,
		&entity.PseudonymLast,
		&entity.Confidence,
		&entity.Ambiguous,
		&entity.AmbiguityReason,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	entity.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, helper.NewError("parse id", err)
	}

	entity.FullName, err = h.cipher.Decrypt(fullName)
	if err != nil {
		return nil, helper.NewError("decrypt full name", err)
	}
	entity.FirstName, err = h.cipher.Decrypt(firstName)
	if err != nil {
		return nil, helper.NewError("decrypt first name", err)
	}
	entity.LastName, err = h.cipher.Decrypt(lastName)
	if err != nil {
		return nil, helper.NewError("decrypt last name", err)
	}

	entity.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, helper.NewError("parse created at", err)
	}

	return entity, nil
}
