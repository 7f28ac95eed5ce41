// Package store owns the Pattern collection: lifecycle transitions,
// querying, and the crash-safe unified persistence format with
// incremental debounced saves.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mattepiu/drift/internal/fsutil"
	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/schedule"
)

// Options configures a Store.
type Options struct {
	// Dir is the patterns directory, e.g. <root>/.drift/patterns.
	Dir string
	// Scheduler drives the debounced auto-save. Defaults to real timers.
	Scheduler schedule.Scheduler
	// Debounce is the quiet period coalescing mutation bursts into one
	// write. Zero disables auto-save; callers then rely on SaveAll/Close.
	Debounce time.Duration
	// MaxBackups caps timestamped backups kept per category file.
	MaxBackups int
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Store is the single source of truth for patterns. All mutation goes
// through its methods; persistence is incremental per dirty category.
type Store struct {
	mu          sync.RWMutex
	dir         string
	patterns    map[string]*pattern.Pattern
	dirty       map[pattern.Category]bool
	scheduler   schedule.Scheduler
	debounce    time.Duration
	maxBackups  int
	now         func() time.Time
	pending     schedule.Task
	events      *publisher
	initialized bool
	lastSaved   time.Time
}

// New creates a Store. Call Initialize before use.
func New(opts Options) *Store {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewTimerScheduler()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	return &Store{
		dir:        opts.Dir,
		patterns:   make(map[string]*pattern.Pattern),
		dirty:      make(map[pattern.Category]bool),
		scheduler:  opts.Scheduler,
		debounce:   opts.Debounce,
		maxBackups: opts.MaxBackups,
		now:        opts.Clock,
		events:     newPublisher(),
	}
}

// Initialize loads the store from disk. It is idempotent: repeated
// calls are no-ops. A missing directory yields an empty store. If the
// deprecated per-status layout is present it is migrated into the
// unified layout once; legacy directories are retained for rollback.
func (s *Store) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	if hasLegacyLayout(s.dir) {
		logger.Info("migrating legacy pattern layout under %s", s.dir)
		loadLegacy(s.dir, s.now(), s.patterns)
		for _, p := range s.patterns {
			s.dirty[p.Category] = true
		}
	}

	if err := loadUnified(s.dir, s.patterns); err != nil {
		return storeErr("initialize", err)
	}

	if len(s.dirty) > 0 {
		if err := s.saveDirtyLocked(); err != nil {
			return storeErr("migrate", err)
		}
	}
	s.initialized = true
	return nil
}

// Subscribe registers a handler for an event kind and returns an
// unsubscribe token.
func (s *Store) Subscribe(kind EventKind, h Handler) Subscription {
	return s.events.subscribe(kind, h)
}

// Unsubscribe removes a previously registered handler.
func (s *Store) Unsubscribe(token Subscription) bool {
	return s.events.unsubscribe(token)
}

// Add inserts a new pattern. A duplicate id is rejected. The store
// keeps its own copy; later mutation of the argument has no effect.
func (s *Store) Add(p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := p.Clone()
	stored.Normalize(s.now())
	if _, exists := s.patterns[stored.ID]; exists {
		return &pattern.PatternAlreadyExistsError{ID: stored.ID}
	}
	s.patterns[stored.ID] = stored
	s.markDirtyLocked(stored.Category)
	s.events.publish(Event{Kind: EventPatternAdded, Pattern: stored.Clone(), Time: s.now()})
	return nil
}

// Get returns a copy of the pattern with the given id.
func (s *Store) Get(id string) (*pattern.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[id]
	if !ok {
		return nil, &pattern.PatternNotFoundError{ID: id}
	}
	return p.Clone(), nil
}

// Update replaces the stored pattern with the same id. The confidence
// level is rederived and lastSeen stamped.
func (s *Store) Update(p *pattern.Pattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.patterns[p.ID]
	if !ok {
		return &pattern.PatternNotFoundError{ID: p.ID}
	}
	now := s.now()
	stored := p.Clone()
	stored.ConfidenceLevel = pattern.LevelForConfidence(stored.Confidence)
	stored.LastSeen = now
	if existing.Category != stored.Category {
		s.markDirtyLocked(existing.Category)
	}
	s.patterns[stored.ID] = stored
	s.markDirtyLocked(stored.Category)
	s.events.publish(Event{Kind: EventPatternUpdated, Pattern: stored.Clone(), Time: now})
	return nil
}

// Delete removes a pattern permanently.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return &pattern.PatternNotFoundError{ID: id}
	}
	delete(s.patterns, id)
	s.markDirtyLocked(p.Category)
	s.events.publish(Event{Kind: EventPatternDeleted, Pattern: p, Time: s.now()})
	return nil
}

// Approve transitions a pattern to approved and stamps the approval
// metadata. Transitions outside the lifecycle table are rejected.
func (s *Store) Approve(id, approvedBy string) error {
	return s.transition(id, pattern.StatusApproved, approvedBy)
}

// Ignore transitions a pattern to ignored.
func (s *Store) Ignore(id string) error {
	return s.transition(id, pattern.StatusIgnored, "")
}

func (s *Store) transition(id string, to pattern.Status, approvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patterns[id]
	if !ok {
		return &pattern.PatternNotFoundError{ID: id}
	}
	if !p.Status.CanTransitionTo(to) {
		return &pattern.InvalidStatusTransitionError{
			PatternID:  id,
			FromStatus: p.Status,
			ToStatus:   to,
		}
	}
	now := s.now()
	from := p.Status
	p.Status = to
	p.LastSeen = now
	if to == pattern.StatusApproved {
		stamp := now
		p.ApprovedAt = &stamp
		p.ApprovedBy = approvedBy
	}
	s.markDirtyLocked(p.Category)
	s.events.publish(Event{
		Kind:       EventPatternStatusChanged,
		Pattern:    p.Clone(),
		FromStatus: from,
		ToStatus:   to,
		Time:       now,
	})
	return nil
}

// BulkApproveResult reports per-id outcomes of a bulk approval.
type BulkApproveResult struct {
	Approved []string          `json:"approved"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// BulkApprove approves every id it can and collects failures instead of
// aborting on the first bad id.
func (s *Store) BulkApprove(ids []string, approvedBy string) BulkApproveResult {
	result := BulkApproveResult{Failed: make(map[string]string)}
	for _, id := range ids {
		if err := s.Approve(id, approvedBy); err != nil {
			result.Failed[id] = err.Error()
			continue
		}
		result.Approved = append(result.Approved, id)
	}
	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result
}

// BulkApproveAbove approves every discovered pattern whose confidence is
// at or above the threshold.
func (s *Store) BulkApproveAbove(minConfidence float64, approvedBy string) BulkApproveResult {
	s.mu.RLock()
	var ids []string
	for id, p := range s.patterns {
		if p.Status == pattern.StatusDiscovered && p.Confidence >= minConfidence {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return s.BulkApprove(ids, approvedBy)
}

// markDirtyLocked flags a category for the next save and (re)arms the
// debounce timer. Caller holds s.mu.
func (s *Store) markDirtyLocked(category pattern.Category) {
	s.dirty[category] = true
	if s.debounce <= 0 {
		return
	}
	if s.pending != nil {
		s.pending.Cancel()
	}
	s.pending = s.scheduler.AfterFunc(s.debounce, s.autoSave)
}

// autoSave is the debounced background save. Errors are logged, not
// propagated; callers needing certainty use SaveAll or Close.
func (s *Store) autoSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if err := s.saveDirtyLocked(); err != nil {
		logger.Error("auto-save failed: %v", err)
	}
}

// SaveAll flushes every dirty category to disk immediately.
func (s *Store) SaveAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	return storeErr("save", s.saveDirtyLocked())
}

// saveDirtyLocked rewrites only the categories touched since the last
// save. Categories left with zero patterns have their file removed.
// Caller holds s.mu.
func (s *Store) saveDirtyLocked() error {
	if len(s.dirty) == 0 {
		return nil
	}
	now := s.now()
	saved := make([]pattern.Category, 0, len(s.dirty))
	for category := range s.dirty {
		if err := s.saveCategory(category, now); err != nil {
			return err
		}
		saved = append(saved, category)
		delete(s.dirty, category)
	}
	s.lastSaved = now
	s.events.publish(Event{Kind: EventStoreSaved, Categories: saved, Time: now})
	return nil
}

func (s *Store) saveCategory(category pattern.Category, now time.Time) error {
	path := categoryFilePath(s.dir, category)
	patterns := s.patternsInCategory(category)
	if len(patterns) == 0 {
		if err := removeIfPresent(path); err != nil {
			return err
		}
		return nil
	}

	// Backups are best-effort; a failed backup never blocks the save.
	if err := fsutil.BackupFile(path, now, s.maxBackups); err != nil {
		logger.Error("backup %s: %v", path, err)
	}

	pf := buildFile(category, patterns, now)
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return fsutil.WriteFileAtomic(path, data)
}

// patternsInCategory returns the category's patterns sorted by id for
// deterministic files.
func (s *Store) patternsInCategory(category pattern.Category) []*pattern.Pattern {
	var out []*pattern.Pattern
	for _, p := range s.patterns {
		if p.Category == category {
			out = append(out, p)
		}
	}
	sortPatternsByID(out)
	return out
}

// Close cancels any pending auto-save and flushes dirty state. The
// store must not be used afterwards.
func (s *Store) Close() error {
	return s.SaveAll()
}

// Len returns the number of stored patterns.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns)
}

func removeIfPresent(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
