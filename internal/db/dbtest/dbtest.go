// Package dbtest 测试用的内存 sqlite 存储
package dbtest

import (
	"testing"

	"mip-lab/internal/config"
	"mip-lab/internal/db"

	"github.com/stretchr/testify/require"
)

// New 每次调用得到一个独立的空库。内存库每个连接一份数据，所以只开一个连接
func New(t testing.TB) *db.Store {
	t.Helper()
	gdb, err := db.Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:", MaxOpenConns: 1})
	require.NoError(t, err)
	require.NoError(t, db.SyncSchema(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db.NewStore(gdb)
}
