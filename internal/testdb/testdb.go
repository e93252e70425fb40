// Package testdb opens isolated in-memory SQLite databases for tests.
package testdb

import (
	"strings"
	"testing"

	"github.com/aisgo/gorm-behaviors/database"
	"github.com/aisgo/gorm-behaviors/database/sqlite"
	"github.com/aisgo/gorm-behaviors/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open returns a fresh database named after the running test and migrates models.
// A shared-cache URI keeps every pooled connection on the same in-memory database.
func Open(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	db, err := sqlite.NewDB(sqlite.Params{
		Config: sqlite.Config{
			DSN:        "file:" + name + "?mode=memory&cache=shared",
			PoolConfig: database.PoolConfig{MaxOpenConns: 1},
		},
		Logger: logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = db.Logger.LogMode(gormlogger.Silent)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db
}
