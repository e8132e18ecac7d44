package database

import (
	"path/filepath"
	"testing"

	"github.com/mjuillard/veil/helper"
	loadSql "github.com/mjuillard/veil/sql"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "correct horse battery staple"

func initDB(t *testing.T) *helper.Database {
	helper.SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "database_test.veil"))
	config, err := helper.NewConfiguration()
	require.NoError(t, err, "failed to create configuration")
	database := helper.NewTestDatabase(config)
	t.Cleanup(func() { database.Close() })

	err = loadSql.Init(database.Instance)
	require.NoError(t, err)

	return database
}

func initCipher(t *testing.T, database *helper.Database) *Cipher {
	cipher, err := NewStoreCipher(database, testPassphrase)
	require.NoError(t, err, "failed to open store cipher")
	return cipher
}
