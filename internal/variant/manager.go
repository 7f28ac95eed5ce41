package variant

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mattepiu/drift/internal/fsutil"
	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/schedule"
	"github.com/mattepiu/drift/internal/validate"
	"github.com/mattepiu/drift/schemas"
)

// IndexVersion is the variants index file version.
const IndexVersion = "1.0.0"

// indexFile is the single on-disk document holding all variants.
type indexFile struct {
	Version     string            `json:"version"`
	Variants    []*PatternVariant `json:"variants"`
	LastUpdated time.Time         `json:"lastUpdated"`
}

// Options configures a Manager.
type Options struct {
	// Dir is the variants directory, e.g. <root>/.drift/patterns/variants.
	Dir        string
	Scheduler  schedule.Scheduler
	Debounce   time.Duration
	MaxBackups int
	Clock      func() time.Time
}

// Manager is the single source of truth for pattern variants.
type Manager struct {
	mu          sync.RWMutex
	dir         string
	variants    map[string]*PatternVariant
	dirty       bool
	scheduler   schedule.Scheduler
	debounce    time.Duration
	maxBackups  int
	now         func() time.Time
	pending     schedule.Task
	initialized bool
}

// NewManager creates a Manager. Call Initialize before use.
func NewManager(opts Options) *Manager {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.NewTimerScheduler()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 5
	}
	return &Manager{
		dir:        opts.Dir,
		variants:   make(map[string]*PatternVariant),
		scheduler:  opts.Scheduler,
		debounce:   opts.Debounce,
		maxBackups: opts.MaxBackups,
		now:        opts.Clock,
	}
}

func (m *Manager) indexPath() string {
	return filepath.Join(m.dir, "index.json")
}

// Initialize loads the variants index. Missing file means empty state.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}
	data, err := os.ReadFile(m.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			m.initialized = true
			return nil
		}
		return &VariantManagerError{Op: "initialize", Err: err}
	}
	if err := validate.Bytes(data, schemas.VariantsIndex, m.indexPath()); err != nil {
		return err
	}
	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return &VariantManagerError{Op: "initialize", Err: fmt.Errorf("decode %s: %w", m.indexPath(), err)}
	}
	for _, v := range idx.Variants {
		m.variants[v.ID] = v
	}
	m.initialized = true
	return nil
}

// Create validates and stores a new variant. The id is assigned when
// empty; new variants start active.
func (m *Manager) Create(v *PatternVariant) (*PatternVariant, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v.ID == "" {
		v.ID = pattern.NewID("var")
	}
	now := m.now()
	v.Active = true
	v.CreatedAt = now
	v.UpdatedAt = now
	m.variants[v.ID] = v
	m.markDirtyLocked()
	return v.Clone(), nil
}

// Get returns a copy of the variant with the given id.
func (m *Manager) Get(id string) (*PatternVariant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.variants[id]
	if !ok {
		return nil, &VariantNotFoundError{ID: id}
	}
	return v.Clone(), nil
}

// Update replaces an existing variant after revalidation.
func (m *Manager) Update(v *PatternVariant) error {
	if err := v.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.variants[v.ID]
	if !ok {
		return &VariantNotFoundError{ID: v.ID}
	}
	v.CreatedAt = existing.CreatedAt
	v.CreatedBy = existing.CreatedBy
	v.UpdatedAt = m.now()
	m.variants[v.ID] = v
	m.markDirtyLocked()
	return nil
}

// Delete removes a variant permanently.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.variants[id]; !ok {
		return &VariantNotFoundError{ID: id}
	}
	delete(m.variants, id)
	m.markDirtyLocked()
	return nil
}

// Activate marks a variant eligible for coverage checks.
func (m *Manager) Activate(id string) error { return m.setActive(id, true) }

// Deactivate excludes a variant from coverage checks without deleting
// its record.
func (m *Manager) Deactivate(id string) error { return m.setActive(id, false) }

func (m *Manager) setActive(id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.variants[id]
	if !ok {
		return &VariantNotFoundError{ID: id}
	}
	if v.Active == active {
		return nil
	}
	v.Active = active
	v.UpdatedAt = m.now()
	m.markDirtyLocked()
	return nil
}

// IsLocationCovered reports whether any active variant for the pattern
// covers the location.
func (m *Manager) IsLocationCovered(patternID string, loc pattern.Location) bool {
	return m.GetCoveringVariant(patternID, loc) != nil
}

// GetCoveringVariant returns a copy of the first active variant covering
// the location, or nil.
func (m *Manager) GetCoveringVariant(patternID string, loc pattern.Location) *PatternVariant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.sortedLocked() {
		if !v.Active || v.PatternID != patternID {
			continue
		}
		if v.Covers(loc) {
			return v.Clone()
		}
	}
	return nil
}

// Query filters variants. Zero-value fields match everything.
type Query struct {
	PatternID  string
	Scope      Scope
	ActiveOnly bool
	File       string
}

// Find returns copies of every variant matching the query, ordered by
// id.
func (m *Manager) Find(q Query) []*PatternVariant {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PatternVariant
	for _, v := range m.sortedLocked() {
		if q.PatternID != "" && v.PatternID != q.PatternID {
			continue
		}
		if q.Scope != "" && v.Scope != q.Scope {
			continue
		}
		if q.ActiveOnly && !v.Active {
			continue
		}
		if q.File != "" && !v.inScope(q.File) {
			continue
		}
		out = append(out, v.Clone())
	}
	return out
}

// Stats summarizes the variant collection.
type Stats struct {
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	ByScope   map[Scope]int  `json:"byScope"`
	ByPattern map[string]int `json:"byPattern"`
}

// GetStats reports counts by activity, scope, and pattern.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := Stats{
		Total:     len(m.variants),
		ByScope:   make(map[Scope]int),
		ByPattern: make(map[string]int),
	}
	for _, v := range m.variants {
		if v.Active {
			stats.Active++
		}
		stats.ByScope[v.Scope]++
		stats.ByPattern[v.PatternID]++
	}
	return stats
}

// markDirtyLocked arms the debounce timer. Caller holds m.mu.
func (m *Manager) markDirtyLocked() {
	m.dirty = true
	if m.debounce <= 0 {
		return
	}
	if m.pending != nil {
		m.pending.Cancel()
	}
	m.pending = m.scheduler.AfterFunc(m.debounce, m.autoSave)
}

func (m *Manager) autoSave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
	if err := m.saveLocked(); err != nil {
		logger.Error("variant auto-save failed: %v", err)
	}
}

// Save flushes the index to disk immediately.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Cancel()
		m.pending = nil
	}
	if err := m.saveLocked(); err != nil {
		return &VariantManagerError{Op: "save", Err: err}
	}
	return nil
}

// Close cancels pending auto-save and flushes.
func (m *Manager) Close() error { return m.Save() }

func (m *Manager) saveLocked() error {
	if !m.dirty {
		return nil
	}
	now := m.now()
	path := m.indexPath()
	if err := fsutil.BackupFile(path, now, m.maxBackups); err != nil {
		logger.Error("backup %s: %v", path, err)
	}
	idx := indexFile{
		Version:     IndexVersion,
		Variants:    m.sortedLocked(),
		LastUpdated: now.UTC(),
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	if err := fsutil.WriteFileAtomic(path, data); err != nil {
		return err
	}
	m.dirty = false
	return nil
}

// sortedLocked returns variants ordered by id. Caller holds m.mu.
func (m *Manager) sortedLocked() []*PatternVariant {
	out := make([]*PatternVariant, 0, len(m.variants))
	for _, v := range m.variants {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
