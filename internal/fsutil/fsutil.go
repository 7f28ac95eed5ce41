// Package fsutil provides filesystem helpers shared by the persistence
// layers: atomic writes, timestamped backups, glob matching, and workspace
// walking.
package fsutil

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// WriteFileAtomic writes data to path via a temp file and rename, so a
// crash mid-write never leaves a truncated file behind.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// BackupDir returns the sibling .backups directory for a file.
func BackupDir(path string) string {
	return filepath.Join(filepath.Dir(path), ".backups")
}

// BackupFile copies the current contents of path into the sibling
// .backups directory, named <basename>-<timestamp>.json with colons in
// the timestamp replaced so the name is portable. A missing source is
// not an error. After writing, backups beyond maxBackups are pruned
// oldest-first; pruning failures are swallowed.
func BackupFile(path string, now time.Time, maxBackups int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	dir := BackupDir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	stamp := strings.ReplaceAll(now.UTC().Format(time.RFC3339), ":", "-")
	dest := filepath.Join(dir, fmt.Sprintf("%s-%s.json", base, stamp))
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return fmt.Errorf("write backup %s: %w", dest, err)
	}

	if maxBackups > 0 {
		pruneBackups(dir, base, maxBackups)
	}
	return nil
}

// pruneBackups removes all but the newest max backups for a basename.
// Best-effort.
func pruneBackups(dir, base string, max int) {
	names := backupNames(dir, base)
	if len(names) <= max {
		return
	}
	for _, name := range names[:len(names)-max] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}

// ListBackups returns backup file names for a path, oldest first.
func ListBackups(path string) []string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return backupNames(BackupDir(path), base)
}

func backupNames(dir, base string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), base+"-") {
			names = append(names, e.Name())
		}
	}
	// Timestamped names sort chronologically.
	sort.Strings(names)
	return names
}

// MatchesAny reports whether the slash-normalized path matches any of
// the given doublestar globs. Malformed globs never match.
func MatchesAny(globs []string, path string) bool {
	normalized := filepath.ToSlash(path)
	for _, g := range globs {
		if g == "" {
			continue
		}
		if ok, err := doublestar.Match(g, normalized); err == nil && ok {
			return true
		}
	}
	return false
}

// ListFiles walks root and returns the relative slash paths of every
// file not matched by the ignore globs. Ignored directories are skipped
// entirely.
func ListFiles(root string, ignoreGlobs []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if MatchesAny(ignoreGlobs, rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// HashFile returns the hex SHA-256 digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
