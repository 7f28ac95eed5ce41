package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	if err := WriteFileAtomic(path, []byte(`{"a":1}`)); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("content = %q", got)
	}

	// Overwrite replaces without leaving temp files behind.
	if err := WriteFileAtomic(path, []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestBackupFileNamingAndPruning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "security.json")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := BackupFile(path, base.Add(time.Duration(i)*time.Minute), 3); err != nil {
			t.Fatalf("BackupFile #%d: %v", i, err)
		}
	}

	names := ListBackups(path)
	if len(names) != 3 {
		t.Fatalf("backups = %d, want pruned to 3: %v", len(names), names)
	}
	// Oldest (10:30) pruned; names carry colon-free timestamps.
	if strings.Contains(names[0], ":") {
		t.Errorf("backup name contains colon: %s", names[0])
	}
	if names[0] != "security-2026-03-01T10-31-00Z.json" {
		t.Errorf("oldest surviving backup = %s", names[0])
	}
}

func TestBackupFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	if err := BackupFile(filepath.Join(dir, "absent.json"), time.Now(), 5); err != nil {
		t.Errorf("missing source should be a no-op, got %v", err)
	}
}

func TestMatchesAny(t *testing.T) {
	globs := []string{"**/node_modules/**", "*.generated.ts", ""}
	tests := []struct {
		path string
		want bool
	}{
		{"src/node_modules/x/y.js", true},
		{"api.generated.ts", true},
		{"src/main.ts", false},
	}
	for _, tt := range tests {
		if got := MatchesAny(globs, tt.path); got != tt.want {
			t.Errorf("MatchesAny(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestListFilesSkipsIgnored(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(rel, content string) {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("src/a.go", "a")
	mustWrite("vendor/dep/b.go", "b")
	mustWrite("c.go", "c")

	files, err := ListFiles(dir, []string{"vendor", "vendor/**"})
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files = %v, want 2 entries", files)
	}
	for _, f := range files {
		if strings.HasPrefix(f, "vendor/") {
			t.Errorf("ignored file listed: %s", f)
		}
	}
}
