package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	db := initDB(t)

	t.Run("Initialize store pragmas", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		// Verify the journal mode stuck
		var mode string
		err = db.Instance.QueryRow("PRAGMA journal_mode;").Scan(&mode)
		require.NoError(t, err)
		assert.Equal(t, "wal", mode, "journal mode should be WAL")
	})

	t.Run("Initialize store pragmas is idempotent", func(t *testing.T) {
		// Running Init multiple times should not error
		err := Init(db.Instance)
		assert.NoError(t, err)

		err = Init(db.Instance)
		assert.NoError(t, err)
	})
}

func TestLoadMetaSql(t *testing.T) {
	db := initDB(t)

	t.Run("Load meta objects", func(t *testing.T) {
		err := LoadMetaSql(db.Instance, false)
		assert.NoError(t, err)

		// Verify all objects exist
		for _, object := range MetaObjects {
			var exists bool
			err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);", object).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "Object %s should exist", object)
		}
	})

	t.Run("Load meta SQL is idempotent without force", func(t *testing.T) {
		err := LoadMetaSql(db.Instance, false)
		assert.NoError(t, err)
	})

	t.Run("Load meta SQL with force reloads", func(t *testing.T) {
		err := LoadMetaSql(db.Instance, true)
		assert.NoError(t, err)
	})
}

func TestLoadEntitiesSql(t *testing.T) {
	db := initDB(t)

	t.Run("Load entities objects", func(t *testing.T) {
		err := LoadEntitiesSql(db.Instance, false)
		assert.NoError(t, err)

		// Verify all objects exist
		for _, object := range EntitiesObjects {
			var exists bool
			err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);", object).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "Object %s should exist", object)
		}
	})

	t.Run("Load entities SQL is idempotent without force", func(t *testing.T) {
		err := LoadEntitiesSql(db.Instance, false)
		assert.NoError(t, err)
	})

	t.Run("Load entities SQL with force reloads", func(t *testing.T) {
		err := LoadEntitiesSql(db.Instance, true)
		assert.NoError(t, err)

		// Verify objects still exist
		for _, object := range EntitiesObjects {
			var exists bool
			err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);", object).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "Object %s should exist after force reload", object)
		}
	})

	t.Run("Force reload keeps existing rows", func(t *testing.T) {
		_, err := db.Instance.Exec(
			`INSERT INTO entities (id, entity_type, theme, name_key, full_name, pseudonym_full, created_at)
			 VALUES ('keep-1', 'PERSON', 'starwars', 'abc', X'00', 'Leia Organa', '2026-01-01T00:00:00Z');`,
		)
		require.NoError(t, err)

		err = LoadEntitiesSql(db.Instance, true)
		assert.NoError(t, err)

		var count int
		err = db.Instance.QueryRow("SELECT COUNT(*) FROM entities;").Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "Force reload must never drop mapping rows")
	})
}

func TestLoadOperationsSql(t *testing.T) {
	db := initDB(t)

	t.Run("Load operations objects", func(t *testing.T) {
		err := LoadOperationsSql(db.Instance, false)
		assert.NoError(t, err)

		// Verify all objects exist
		for _, object := range OperationsObjects {
			var exists bool
			err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);", object).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "Object %s should exist", object)
		}
	})

	t.Run("Load operations SQL is idempotent without force", func(t *testing.T) {
		err := LoadOperationsSql(db.Instance, false)
		assert.NoError(t, err)
	})

	t.Run("Load operations SQL with force reloads", func(t *testing.T) {
		err := LoadOperationsSql(db.Instance, true)
		assert.NoError(t, err)
	})
}

func TestLoadAllSql(t *testing.T) {
	db := initDB(t)

	t.Run("Load all objects", func(t *testing.T) {
		err := LoadAllSql(db.Instance, false)
		assert.NoError(t, err)

		all := [][]string{MetaObjects, EntitiesObjects, OperationsObjects}
		for _, objects := range all {
			for _, object := range objects {
				var exists bool
				err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE name = ?);", object).Scan(&exists)
				require.NoError(t, err)
				assert.True(t, exists, "Object %s should exist", object)
			}
		}
	})

	t.Run("Load all SQL is idempotent without force", func(t *testing.T) {
		err := LoadAllSql(db.Instance, false)
		assert.NoError(t, err)
	})

	t.Run("Load all SQL with force reloads", func(t *testing.T) {
		err := LoadAllSql(db.Instance, true)
		assert.NoError(t, err)
	})
}

func TestCheckObjects(t *testing.T) {
	db := initDB(t)

	t.Run("Check objects returns false when objects don't exist", func(t *testing.T) {
		exists, err := checkObjects(db.Instance, []string{"nonexistent_table"})
		assert.NoError(t, err)
		assert.False(t, exists, "Should return false for nonexistent object")
	})

	t.Run("Check objects returns true when all objects exist", func(t *testing.T) {
		err := LoadEntitiesSql(db.Instance, false)
		require.NoError(t, err)

		exists, err := checkObjects(db.Instance, EntitiesObjects)
		assert.NoError(t, err)
		assert.True(t, exists, "Should return true when all objects exist")
	})

	t.Run("Check objects returns false when some objects don't exist", func(t *testing.T) {
		mixed := append([]string{"entities"}, "nonexistent_table")
		exists, err := checkObjects(db.Instance, mixed)
		assert.NoError(t, err)
		assert.False(t, exists, "Should return false when some objects don't exist")
	})

	t.Run("Check objects with empty list", func(t *testing.T) {
		exists, err := checkObjects(db.Instance, []string{})
		assert.NoError(t, err)
		// With an empty list the loop doesn't execute and allExist remains false
		assert.False(t, exists, "Should return false for empty object list")
	})
}

func TestEmbeddedSQL(t *testing.T) {
	t.Run("Init SQL is embedded", func(t *testing.T) {
		assert.NotEmpty(t, initSQL, "initSQL should be embedded")
		assert.Contains(t, initSQL, "PRAGMA", "Should contain PRAGMA statements")
	})

	t.Run("Meta SQL is embedded", func(t *testing.T) {
		assert.NotEmpty(t, metaSQL, "metaSQL should be embedded")
		assert.Contains(t, metaSQL, "CREATE", "Should contain CREATE statements")
	})

	t.Run("Entities SQL is embedded", func(t *testing.T) {
		assert.NotEmpty(t, entitiesSQL, "entitiesSQL should be embedded")
		assert.Contains(t, entitiesSQL, "CREATE", "Should contain CREATE statements")
	})

	t.Run("Operations SQL is embedded", func(t *testing.T) {
		assert.NotEmpty(t, operationsSQL, "operationsSQL should be embedded")
		assert.Contains(t, operationsSQL, "CREATE", "Should contain CREATE statements")
	})
}
