package sql

import (
	"path/filepath"
	"testing"

	"github.com/mjuillard/veil/helper"
	"github.com/stretchr/testify/require"
)

func initDB(t *testing.T) *helper.Database {
	helper.SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "sql_test.veil"))
	config, err := helper.NewConfiguration()
	require.NoError(t, err, "failed to create configuration")
	database := helper.NewTestDatabase(config)
	t.Cleanup(func() { database.Close() })

	err = Init(database.Instance)
	require.NoError(t, err)

	return database
}
