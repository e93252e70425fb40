package sqlite

import (
	"context"
	"testing"

	"github.com/aisgo/gorm-behaviors/logger"

	"go.uber.org/fx"
)

type testLifecycle struct {
	hooks []fx.Hook
}

func (l *testLifecycle) Append(h fx.Hook) {
	l.hooks = append(l.hooks, h)
}

func (l *testLifecycle) stop(ctx context.Context) error {
	for _, h := range l.hooks {
		if h.OnStop != nil {
			if err := h.OnStop(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func TestNewDB(t *testing.T) {
	lc := &testLifecycle{}
	db, err := NewDB(Params{
		Lc:     lc,
		Config: Config{DSN: "file:sqlite_newdb?mode=memory&cache=shared"},
		Logger: logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}

	var one int
	if err := db.Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatalf("select 1: %v", err)
	}
	if one != 1 {
		t.Fatalf("unexpected result: %d", one)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB: %v", err)
	}
	if got := sqlDB.Stats().MaxOpenConnections; got != 25 {
		t.Fatalf("expected default max open conns 25, got %d", got)
	}

	if err := lc.stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := sqlDB.Ping(); err == nil {
		t.Fatalf("expected closed pool after stop")
	}
}
