package mysql

import (
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
)

func TestBuildDSNDefaults(t *testing.T) {
	dsn := Config{Host: "127.0.0.1", Port: 3306, User: "root", Password: "pw", DBName: "app"}.BuildDSN()

	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if cfg.Addr != "127.0.0.1:3306" || cfg.DBName != "app" || cfg.User != "root" {
		t.Fatalf("unexpected dsn fields: %+v", cfg)
	}
	if !cfg.ParseTime {
		t.Fatalf("parseTime must be enabled")
	}
	if cfg.Params["charset"] != "utf8mb4" {
		t.Fatalf("expected default charset, got %q", cfg.Params["charset"])
	}
}

func TestBuildDSNExplicit(t *testing.T) {
	raw := "u:p@tcp(db:3306)/x?parseTime=true"
	if got := (Config{DSN: raw, Host: "ignored"}).BuildDSN(); got != raw {
		t.Fatalf("expected explicit dsn, got %s", got)
	}
}
