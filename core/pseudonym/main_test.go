package pseudonym

import (
	"path/filepath"
	"testing"

	"github.com/mjuillard/veil/database"
	"github.com/mjuillard/veil/helper"
	loadSql "github.com/mjuillard/veil/sql"
	"github.com/stretchr/testify/require"
)

func initStore(t *testing.T) *database.EntitiesDBHandler {
	helper.SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "pseudonym_test.veil"))
	config, err := helper.NewConfiguration()
	require.NoError(t, err, "failed to create configuration")
	db := helper.NewTestDatabase(config)
	t.Cleanup(func() { db.Close() })

	err = loadSql.Init(db.Instance)
	require.NoError(t, err)

	cipher, err := database.NewStoreCipher(db, config.Passphrase)
	require.NoError(t, err, "failed to open store cipher")

	entities, err := database.NewEntitiesDBHandler(db, cipher, true)
	require.NoError(t, err, "failed to create entities handler")

	return entities
}

func initEngine(t *testing.T) (*Engine, *database.EntitiesDBHandler) {
	library, err := NewLibrary()
	require.NoError(t, err, "failed to load theme library")

	entities := initStore(t)
	return NewEngine(entities, library), entities
}
