package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/schedule"
)

func testPattern(id string, category pattern.Category) *pattern.Pattern {
	return &pattern.Pattern{
		ID:         id,
		Category:   category,
		Name:       "use structured logging",
		Detector:   pattern.Detector{Type: pattern.DetectorRegex, Regex: &pattern.RegexDetector{Pattern: `console\.log`}},
		Confidence: 0.9,
		Locations: []pattern.Location{
			{File: "src/app.ts", Line: 10, Column: 1},
		},
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "patterns")
	s := New(Options{Dir: dir})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s, dir
}

func TestInitializeMissingDirIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	if s.Len() != 0 {
		t.Errorf("Len = %d, want 0", s.Len())
	}
	// Idempotent.
	if err := s.Initialize(); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
}

func TestAddGetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	p := testPattern("pat_aaaa0001", pattern.CategoryLogging)
	if err := s.Add(p); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var dup *pattern.PatternAlreadyExistsError
	if err := s.Add(testPattern("pat_aaaa0001", pattern.CategoryLogging)); !errors.As(err, &dup) {
		t.Errorf("duplicate Add error = %v, want PatternAlreadyExistsError", err)
	}

	got, err := s.Get("pat_aaaa0001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != pattern.StatusDiscovered {
		t.Errorf("new pattern status = %s, want discovered", got.Status)
	}
	if got.ConfidenceLevel != pattern.ConfidenceHigh {
		t.Errorf("confidenceLevel = %s, want high", got.ConfidenceLevel)
	}

	// Get returns a copy, not the stored value.
	got.Name = "mutated"
	again, _ := s.Get("pat_aaaa0001")
	if again.Name == "mutated" {
		t.Error("Get exposed internal state")
	}

	if err := s.Delete("pat_aaaa0001"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	var nf *pattern.PatternNotFoundError
	if _, err := s.Get("pat_aaaa0001"); !errors.As(err, &nf) {
		t.Errorf("Get after delete = %v, want PatternNotFoundError", err)
	}
	if err := s.Delete("pat_aaaa0001"); !errors.As(err, &nf) {
		t.Errorf("double Delete = %v, want PatternNotFoundError", err)
	}
}

func TestAddAndUpdateCopyTheirArgument(t *testing.T) {
	s, _ := newTestStore(t)
	p := testPattern("pat_aaaa0001", pattern.CategoryAPI)
	if err := s.Add(p); err != nil {
		t.Fatal(err)
	}

	p.Name = "mutated after add"
	p.Locations = append(p.Locations, pattern.Location{File: "sneaky.ts", Line: 1, Column: 1})
	got, _ := s.Get("pat_aaaa0001")
	if got.Name == "mutated after add" || len(got.Locations) != 1 {
		t.Error("Add stored the caller's pattern instead of a copy")
	}

	upd := testPattern("pat_aaaa0001", pattern.CategoryAPI)
	upd.Description = "updated"
	if err := s.Update(upd); err != nil {
		t.Fatal(err)
	}
	upd.Description = "mutated after update"
	got, _ = s.Get("pat_aaaa0001")
	if got.Description != "updated" {
		t.Errorf("description = %q, Update stored the caller's pattern", got.Description)
	}
}

func TestStatusTransitions(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI)); err != nil {
		t.Fatal(err)
	}

	if err := s.Approve("pat_aaaa0001", "alex"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, _ := s.Get("pat_aaaa0001")
	if got.Status != pattern.StatusApproved || got.ApprovedBy != "alex" || got.ApprovedAt == nil {
		t.Errorf("approval stamps missing: %+v", got)
	}

	// approved -> approved is not in the table.
	var bad *pattern.InvalidStatusTransitionError
	if err := s.Approve("pat_aaaa0001", "alex"); !errors.As(err, &bad) {
		t.Fatalf("re-approve error = %v, want InvalidStatusTransitionError", err)
	}
	if bad.FromStatus != pattern.StatusApproved || bad.ToStatus != pattern.StatusApproved {
		t.Errorf("transition diagnostics = %s -> %s", bad.FromStatus, bad.ToStatus)
	}

	if err := s.Ignore("pat_aaaa0001"); err != nil {
		t.Fatalf("Ignore after approve: %v", err)
	}
	if err := s.Approve("pat_aaaa0001", "sam"); err != nil {
		t.Fatalf("re-approve from ignored: %v", err)
	}

	var nf *pattern.PatternNotFoundError
	if err := s.Approve("pat_missing", ""); !errors.As(err, &nf) {
		t.Errorf("Approve unknown id = %v, want PatternNotFoundError", err)
	}
}

func TestBulkApproveCollectsFailures(t *testing.T) {
	s, _ := newTestStore(t)
	s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI))
	s.Add(testPattern("pat_aaaa0002", pattern.CategoryAPI))

	result := s.BulkApprove([]string{"pat_aaaa0001", "pat_missing", "pat_aaaa0002"}, "alex")
	if len(result.Approved) != 2 {
		t.Errorf("approved = %v", result.Approved)
	}
	if _, ok := result.Failed["pat_missing"]; !ok {
		t.Errorf("failed map = %v, want pat_missing entry", result.Failed)
	}
}

func TestBulkApproveAbove(t *testing.T) {
	s, _ := newTestStore(t)
	strong := testPattern("pat_aaaa0001", pattern.CategoryAPI)
	weak := testPattern("pat_aaaa0002", pattern.CategoryAPI)
	weak.Confidence = 0.4
	already := testPattern("pat_aaaa0003", pattern.CategoryAPI)
	s.Add(strong)
	s.Add(weak)
	s.Add(already)
	s.Approve("pat_aaaa0003", "alex")

	result := s.BulkApproveAbove(0.7, "alex")
	if len(result.Approved) != 1 || result.Approved[0] != "pat_aaaa0001" {
		t.Errorf("approved = %v, want only pat_aaaa0001", result.Approved)
	}
	if result.Failed != nil {
		t.Errorf("failed = %v, want none", result.Failed)
	}
	if p, _ := s.Get("pat_aaaa0002"); p.Status != pattern.StatusDiscovered {
		t.Errorf("low-confidence pattern status = %s, want discovered", p.Status)
	}
}

func TestSaveAllWritesUnifiedFormat(t *testing.T) {
	s, dir := newTestStore(t)
	s.Add(testPattern("pat_bbbb0002", pattern.CategoryLogging))
	s.Add(testPattern("pat_aaaa0001", pattern.CategoryLogging))
	s.Approve("pat_aaaa0001", "alex")
	if err := s.SaveAll(); err != nil {
		t.Fatalf("SaveAll: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "logging.json"))
	if err != nil {
		t.Fatalf("read category file: %v", err)
	}
	var pf patternFile
	if err := json.Unmarshal(data, &pf); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pf.Version != FileVersion {
		t.Errorf("version = %s", pf.Version)
	}
	if pf.PatternCount != 2 || len(pf.Patterns) != 2 {
		t.Errorf("patternCount = %d", pf.PatternCount)
	}
	if pf.StatusCounts.Approved != 1 || pf.StatusCounts.Discovered != 1 {
		t.Errorf("statusCounts = %+v", pf.StatusCounts)
	}
	if len(pf.Checksum) != 16 {
		t.Errorf("checksum = %q, want 16 hex chars", pf.Checksum)
	}
	// Deterministic ordering by id.
	if pf.Patterns[0].ID != "pat_aaaa0001" {
		t.Errorf("patterns not sorted by id: %s first", pf.Patterns[0].ID)
	}
}

func TestChecksumStability(t *testing.T) {
	a := Checksum([]string{"pat_b", "pat_a", "pat_c"})
	b := Checksum([]string{"pat_c", "pat_a", "pat_b"})
	if a != b {
		t.Error("checksum depends on id order")
	}
	if a == Checksum([]string{"pat_a", "pat_b"}) {
		t.Error("checksum unchanged after removing an id")
	}
	if len(a) != 16 {
		t.Errorf("checksum length = %d", len(a))
	}
}

func TestEmptyCategoryFileRemoved(t *testing.T) {
	s, dir := newTestStore(t)
	s.Add(testPattern("pat_aaaa0001", pattern.CategoryTesting))
	if err := s.SaveAll(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "testing.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("category file not written: %v", err)
	}

	s.Delete("pat_aaaa0001")
	if err := s.SaveAll(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty category file should be removed")
	}
}

func TestReloadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "patterns")
	s := New(Options{Dir: dir})
	s.Initialize()
	s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI))
	s.Approve("pat_aaaa0001", "alex")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := New(Options{Dir: dir})
	if err := reopened.Initialize(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, err := reopened.Get("pat_aaaa0001")
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Status != pattern.StatusApproved || got.ApprovedBy != "alex" {
		t.Errorf("reloaded pattern = %+v", got)
	}
}

func TestDebouncedAutoSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "patterns")
	sched := schedule.NewManualScheduler()
	s := New(Options{Dir: dir, Scheduler: sched, Debounce: time.Second})
	if err := s.Initialize(); err != nil {
		t.Fatal(err)
	}

	s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI))
	s.Add(testPattern("pat_aaaa0002", pattern.CategoryAPI))

	path := filepath.Join(dir, "api.json")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("file written before debounce elapsed")
	}
	// Two mutations collapse into one pending task.
	if sched.Pending() != 1 {
		t.Errorf("pending tasks = %d, want 1", sched.Pending())
	}

	sched.Advance(time.Second)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("auto-save did not write: %v", err)
	}
	var pf patternFile
	if err := json.Unmarshal(data, &pf); err != nil {
		t.Fatal(err)
	}
	if pf.PatternCount != 2 {
		t.Errorf("patternCount = %d, want both mutations flushed", pf.PatternCount)
	}
}

func TestLegacyMigration(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "patterns")
	legacy := `{
		"version": "1.0.0",
		"patterns": [
			{"id": "pat_leg00001", "category": "", "name": "old style", "detector": {"type": "regex", "regex": {"pattern": "x"}}, "confidence": 0.72}
		]
	}`
	if err := os.MkdirAll(filepath.Join(dir, "approved"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "approved", "api.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	// A corrupt legacy file must not block migration.
	if err := os.WriteFile(filepath.Join(dir, "approved", "broken.json"), []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(Options{Dir: dir})
	if err := s.Initialize(); err != nil {
		t.Fatalf("Initialize with legacy layout: %v", err)
	}

	got, err := s.Get("pat_leg00001")
	if err != nil {
		t.Fatalf("migrated pattern missing: %v", err)
	}
	if got.Status != pattern.StatusApproved {
		t.Errorf("status = %s, want approved from directory", got.Status)
	}
	if got.Category != pattern.CategoryAPI {
		t.Errorf("category = %s, want api from filename", got.Category)
	}
	if got.ConfidenceLevel != pattern.ConfidenceMedium {
		t.Errorf("confidenceLevel = %s, want recomputed medium", got.ConfidenceLevel)
	}

	// Unified file written, legacy directory retained for rollback.
	if _, err := os.Stat(filepath.Join(dir, "api.json")); err != nil {
		t.Errorf("unified file not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "approved", "api.json")); err != nil {
		t.Errorf("legacy file should be retained: %v", err)
	}
}

func TestEvents(t *testing.T) {
	s, _ := newTestStore(t)
	var seen []EventKind
	token := s.Subscribe(EventPatternStatusChanged, func(ev Event) {
		seen = append(seen, ev.Kind)
		if ev.FromStatus != pattern.StatusDiscovered || ev.ToStatus != pattern.StatusApproved {
			t.Errorf("event statuses = %s -> %s", ev.FromStatus, ev.ToStatus)
		}
	})

	s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI))
	s.Approve("pat_aaaa0001", "alex")
	if len(seen) != 1 {
		t.Fatalf("status events = %d, want 1", len(seen))
	}

	if !s.Unsubscribe(token) {
		t.Error("Unsubscribe returned false for live token")
	}
	s.Ignore("pat_aaaa0001")
	if len(seen) != 1 {
		t.Error("handler fired after unsubscribe")
	}
	if s.Unsubscribe(token) {
		t.Error("Unsubscribe returned true for dead token")
	}
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	s.Add(testPattern("pat_aaaa0001", pattern.CategoryAPI))
	s.Add(testPattern("pat_aaaa0002", pattern.CategoryLogging))
	s.Approve("pat_aaaa0001", "alex")
	s.SaveAll()

	stats := s.Stats()
	if stats.TotalPatterns != 2 {
		t.Errorf("totalPatterns = %d", stats.TotalPatterns)
	}
	if stats.ByStatus[pattern.StatusApproved] != 1 || stats.ByStatus[pattern.StatusDiscovered] != 1 {
		t.Errorf("byStatus = %v", stats.ByStatus)
	}
	if stats.FileCount != 2 {
		t.Errorf("fileCount = %d, want 2", stats.FileCount)
	}
	if stats.DiskBytes == 0 {
		t.Error("diskBytes = 0")
	}
}
