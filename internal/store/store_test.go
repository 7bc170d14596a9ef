package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAscendingAndIdempotent(t *testing.T) {
	require.NotEmpty(t, migrations)
	for i, m := range migrations {
		assert.Equal(t, i+1, m.version, m.name)
		assert.Contains(t, m.sql, "IF NOT EXISTS")
	}
}

func TestComplaintsSchemaCarriesVersion(t *testing.T) {
	schema := migrations[0].sql
	assert.Regexp(t, `version\s+BIGINT`, schema)
	assert.Contains(t, schema, "resolved_stamp")
}

func TestNilConnectionsReportHealthy(t *testing.T) {
	var db *DB
	var rdb *Redis
	assert.True(t, db.Healthy(context.Background()))
	assert.True(t, rdb.Healthy(context.Background()))
	assert.NoError(t, db.Close())
	assert.NoError(t, rdb.Close())
}

func TestNewDBRejectsEmptyURL(t *testing.T) {
	_, err := NewDB(context.Background(), "")
	assert.Error(t, err)
}
