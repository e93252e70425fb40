package database

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationOf(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM articles":         "select",
		"  UPDATE `articles` SET a=1":    "update",
		"INSERT\nINTO articles VALUES()": "insert",
		"":                               "unknown",
	}
	for sql, want := range cases {
		if got := operationOf(sql); got != want {
			t.Fatalf("operationOf(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestZapGormLoggerTrace(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapGormLogger(zap.New(core))

	begin := time.Now().Add(-time.Second)
	l.Trace(context.Background(), begin, func() (string, int64) { return "SELECT 1", 1 }, nil)
	if logs.FilterMessage("gorm slow query").Len() != 1 {
		t.Fatalf("expected slow query warning, got %v", logs.All())
	}

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gorm.ErrRecordNotFound)
	if logs.FilterMessage("gorm query failed").Len() != 0 {
		t.Fatalf("record not found must be ignored")
	}

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), begin, func() (string, int64) { return "DELETE FROM x", 1 }, gorm.ErrInvalidData)
	if logs.FilterMessage("gorm query failed").Len() != 0 {
		t.Fatalf("silent logger must not log")
	}

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "DELETE FROM x", 1 }, gorm.ErrInvalidData)
	if logs.FilterMessage("gorm query failed").Len() != 1 {
		t.Fatalf("expected error log")
	}
}
