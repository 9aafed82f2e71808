package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestFS_ContainsOrderedGooseFiles(t *testing.T) {
	entries, err := fs.ReadDir(FS(), ".")
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatalf("no migrations embedded")
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".sql") {
			t.Fatalf("unexpected file %q", e.Name())
		}
		b, err := fs.ReadFile(FS(), e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		body := string(b)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", e.Name())
		}
	}
}

func TestSchema_DeclaresCascadeAndUniqueness(t *testing.T) {
	b, err := fs.ReadFile(FS(), "00001_accounts_sessions.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(b)
	for _, want := range []string{
		"CONSTRAINT uq_users_email UNIQUE (email)",
		"REFERENCES users(id) ON DELETE CASCADE",
		"CONSTRAINT uq_sessions_token_hash UNIQUE (token_hash)",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
