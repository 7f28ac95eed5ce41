package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/validate"
	"github.com/mattepiu/drift/schemas"
)

// FileVersion is the canonical unified pattern file version.
const FileVersion = "2.0.0"

// LegacyFileVersion marks the deprecated per-status layout.
const LegacyFileVersion = "1.0.0"

var legacyStatusDirs = []pattern.Status{
	pattern.StatusDiscovered,
	pattern.StatusApproved,
	pattern.StatusIgnored,
}

// statusCounts summarizes patterns per lifecycle status within one file.
type statusCounts struct {
	Discovered int `json:"discovered"`
	Approved   int `json:"approved"`
	Ignored    int `json:"ignored"`
}

// patternFile is the unified on-disk format, one file per category.
type patternFile struct {
	Version      string             `json:"version"`
	Category     pattern.Category   `json:"category"`
	Patterns     []*pattern.Pattern `json:"patterns"`
	LastUpdated  time.Time          `json:"lastUpdated"`
	Checksum     string             `json:"checksum"`
	PatternCount int                `json:"patternCount"`
	StatusCounts statusCounts       `json:"statusCounts"`
}

// legacyFile is the deprecated per-status format. Category and status
// are implied by the file's location.
type legacyFile struct {
	Version     string             `json:"version"`
	Category    pattern.Category   `json:"category"`
	Patterns    []*pattern.Pattern `json:"patterns"`
	LastUpdated string             `json:"lastUpdated,omitempty"`
	Checksum    string             `json:"checksum,omitempty"`
}

// Checksum returns the truncated hex SHA-256 over the sorted id list.
// It detects structural drift (membership changes), not content drift.
func Checksum(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return fmt.Sprintf("%x", sum)[:16]
}

func buildFile(category pattern.Category, patterns []*pattern.Pattern, now time.Time) *patternFile {
	ids := make([]string, 0, len(patterns))
	var counts statusCounts
	for _, p := range patterns {
		ids = append(ids, p.ID)
		switch p.Status {
		case pattern.StatusDiscovered:
			counts.Discovered++
		case pattern.StatusApproved:
			counts.Approved++
		case pattern.StatusIgnored:
			counts.Ignored++
		}
	}
	return &patternFile{
		Version:      FileVersion,
		Category:     category,
		Patterns:     patterns,
		LastUpdated:  now.UTC(),
		Checksum:     Checksum(ids),
		PatternCount: len(patterns),
		StatusCounts: counts,
	}
}

func categoryFilePath(dir string, category pattern.Category) string {
	return filepath.Join(dir, string(category)+".json")
}

// loadUnified reads every unified category file under dir into the map.
// A missing directory is an empty store. Files failing schema validation
// propagate a SchemaValidationError.
func loadUnified(dir string, into map[string]*pattern.Pattern) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := validate.Bytes(data, schemas.PatternFile, path); err != nil {
			return err
		}
		var pf patternFile
		if err := json.Unmarshal(data, &pf); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		for _, p := range pf.Patterns {
			if p.Category == "" {
				p.Category = pf.Category
			}
			p.ConfidenceLevel = pattern.LevelForConfidence(p.Confidence)
			into[p.ID] = p
		}
	}
	return nil
}

// hasLegacyLayout reports whether any per-status directory exists.
func hasLegacyLayout(dir string) bool {
	for _, status := range legacyStatusDirs {
		info, err := os.Stat(filepath.Join(dir, string(status)))
		if err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// loadLegacy reads the deprecated per-status layout, re-tagging each
// pattern with its directory's status. Unreadable files are logged and
// skipped so one corrupt legacy file cannot block migration; derived
// fields are recomputed rather than trusted.
func loadLegacy(dir string, now time.Time, into map[string]*pattern.Pattern) {
	for _, status := range legacyStatusDirs {
		statusDir := filepath.Join(dir, string(status))
		entries, err := os.ReadDir(statusDir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(statusDir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Error("legacy migration: read %s: %v", path, err)
				continue
			}
			var lf legacyFile
			if err := json.Unmarshal(data, &lf); err != nil {
				logger.Error("legacy migration: decode %s: %v", path, err)
				continue
			}
			category := lf.Category
			if category == "" {
				category = pattern.Category(strings.TrimSuffix(e.Name(), ".json"))
			}
			for _, p := range lf.Patterns {
				if p.ID == "" {
					logger.Error("legacy migration: %s holds a pattern without an id, skipped", path)
					continue
				}
				if p.Category == "" {
					p.Category = category
				}
				p.Status = status
				p.Normalize(now)
				into[p.ID] = p
			}
		}
	}
}
