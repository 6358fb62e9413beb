package migrate

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateDirRejectsBadFiles(t *testing.T) {
	cases := map[string]struct {
		files map[string]string
		want  string
	}{
		"bad name": {
			files: map[string]string{"create_products.sql": "-- +goose Up\n-- +goose Down\n"},
			want:  "invalid migration filename",
		},
		"duplicate version": {
			files: map[string]string{
				"20250101000000_a.sql": "-- +goose Up\n-- +goose Down\n",
				"20250101000000_b.sql": "-- +goose Up\n-- +goose Down\n",
			},
			want: "duplicate migration version",
		},
		"missing down": {
			files: map[string]string{"20250101000000_a.sql": "-- +goose Up\n"},
			want:  "missing \"-- +goose Down\"",
		},
		"down first": {
			files: map[string]string{"20250101000000_a.sql": "-- +goose Down\n-- +goose Up\n"},
			want:  "Down before Up",
		},
		"unbalanced block": {
			files: map[string]string{"20250101000000_a.sql": "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n"},
			want:  "StatementBegin",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range tc.files {
				if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			err := ValidateDir(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC)
	path, err := CreateSQLMigration(dir, "Add Sale Calendar!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20250105093000_add_sale_calendar.sql" {
		t.Fatalf("unexpected file name %s", path)
	}
	if err := ValidateDir(dir); err != nil {
		t.Fatalf("created migration does not validate: %v", err)
	}
	if _, err := CreateSQLMigration(dir, "add sale calendar", now); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected already exists error, got %v", err)
	}
	if _, err := CreateSQLMigration(dir, "  !!  ", now); err == nil {
		t.Fatalf("expected error for empty sanitized name")
	}
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion(" 20250101000200 ")
	if err != nil || v != 20250101000200 {
		t.Fatalf("expected 20250101000200, got %d (%v)", v, err)
	}
	for _, bad := range []string{"", "2025", "20251301000000", "abc"} {
		if _, err := ParseVersion(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEmbeddedMigrationsMatchDisk(t *testing.T) {
	if err := ValidateFS(Migrations()); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
	embedded, err := fs.Glob(Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}
