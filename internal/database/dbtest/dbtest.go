// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/javajoker/mpnode/internal/database"
)

// Open returns a private migrated database. Every pooled connection shares
// the same named in-memory store.
func Open() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig("silent"))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; a single connection avoids SQLITE_LOCKED in shared cache mode.
	sqlDB.SetMaxOpenConns(1)

	if err := database.RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := Open()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}
