package database

import (
	"strings"
	"testing"
	"time"
)

func TestConnString(t *testing.T) {
	got := connString(Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "cartaporte",
		User:            "app",
		Password:        "secret",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})

	want := "host=localhost port=5432 dbname=cartaporte user=app password=secret sslmode=disable pool_max_conns=25 pool_min_conns=5 pool_max_conn_lifetime=5m0s"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMigrations(t *testing.T) {
	files, err := Migrations()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"migrations/001_create_pac_audit_log.sql",
		"migrations/002_create_sat_codigo_postal.sql",
		"migrations/003_create_rfc_validado.sql",
		"migrations/004_create_carta_porte_documento.sql",
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d migrations, got %v", len(want), files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("migration %d: expected %s, got %s", i, want[i], files[i])
		}
	}

	for _, f := range files {
		sql, err := migrationsFS.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if !strings.Contains(string(sql), "IF NOT EXISTS") {
			t.Errorf("%s must be idempotent", f)
		}
	}
}
