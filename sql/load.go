package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed meta.sql
var metaSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed operations.sql
var operationsSQL string

// Object lists for verification
var MetaObjects = []string{
	"veil_meta",
}

var EntitiesObjects = []string{
	"entities",
	"idx_entities_name_key",
	"idx_entities_pseudonym",
	"idx_entities_theme",
}

var OperationsObjects = []string{
	"operations",
	"idx_operations_created_at",
}

// Init applies the connection level pragmas
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing init SQL: %w", err)
	}

	return nil
}

// LoadMetaSql creates the store metadata table
func LoadMetaSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkObjects(db, MetaObjects)
		if err != nil {
			return fmt.Errorf("error checking existing meta objects: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(metaSQL)
	if err != nil {
		return fmt.Errorf("error executing meta SQL: %w", err)
	}

	exist, err := checkObjects(db, MetaObjects)
	if err != nil {
		return fmt.Errorf("error checking existing objects: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required store objects were created")
	}

	return nil
}

// LoadEntitiesSql creates the mapping table and its indexes
func LoadEntitiesSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkObjects(db, EntitiesObjects)
		if err != nil {
			return fmt.Errorf("error checking existing entities objects: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(entitiesSQL)
	if err != nil {
		return fmt.Errorf("error executing entities SQL: %w", err)
	}

	exist, err := checkObjects(db, EntitiesObjects)
	if err != nil {
		return fmt.Errorf("error checking existing objects: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required store objects were created")
	}

	return nil
}

// LoadOperationsSql creates the audit trail table and its index
func LoadOperationsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkObjects(db, OperationsObjects)
		if err != nil {
			return fmt.Errorf("error checking existing operations objects: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(operationsSQL)
	if err != nil {
		return fmt.Errorf("error executing operations SQL: %w", err)
	}

	exist, err := checkObjects(db, OperationsObjects)
	if err != nil {
		return fmt.Errorf("error checking existing objects: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required store objects were created")
	}

	return nil
}

// LoadAllSql creates all store tables and indexes
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadMetaSql(db, force); err != nil {
		return err
	}

	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadOperationsSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkObjects verifies that all required tables and indexes exist in the store
func checkObjects(db *sql.DB, objects []string) (bool, error) {
	var allExist bool
	for _, o := range objects {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);`,
			o,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of object %s: %w", o, err)
		}
		if !allExist {
			log.Printf("Object %s does not exist", o)
			break
		}
	}
	return allExist, nil
}
