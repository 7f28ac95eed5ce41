package severity

import (
	"sync"

	"github.com/mattepiu/drift/internal/pattern"
)

// EscalationRule promotes a severity once the tracked violation count for a
// pattern or its category reaches AfterCount.
type EscalationRule struct {
	From       pattern.Severity `json:"from"`
	To         pattern.Severity `json:"to"`
	AfterCount int              `json:"afterCount"`
}

// DefaultEscalationRules returns the built-in escalation ladder:
// hint -> info, info -> warning, warning -> error, each after 10 tracked
// violations.
func DefaultEscalationRules() []EscalationRule {
	return []EscalationRule{
		{From: pattern.SeverityHint, To: pattern.SeverityInfo, AfterCount: 10},
		{From: pattern.SeverityInfo, To: pattern.SeverityWarning, AfterCount: 10},
		{From: pattern.SeverityWarning, To: pattern.SeverityError, AfterCount: 10},
	}
}

// Config controls severity resolution and escalation.
type Config struct {
	// Default is the global fallback severity when no override or category
	// default applies.
	Default pattern.Severity

	// PatternOverrides maps pattern id to a pinned severity.
	PatternOverrides map[string]pattern.Severity

	// CategoryOverrides maps category to a pinned severity.
	CategoryOverrides map[pattern.Category]pattern.Severity

	// EscalationEnabled turns count-driven escalation on. Disabled by
	// default.
	EscalationEnabled bool

	// EscalationRules replaces the default ladder when non-empty.
	EscalationRules []EscalationRule
}

// DefaultConfig returns a config with escalation disabled and warning as
// the global default.
func DefaultConfig() Config {
	return Config{
		Default:           pattern.SeverityWarning,
		PatternOverrides:  map[string]pattern.Severity{},
		CategoryOverrides: map[pattern.Category]pattern.Severity{},
		EscalationRules:   DefaultEscalationRules(),
	}
}

// Manager maps patterns to effective severities and tracks violation counts
// for escalation. Counts are kept independently per pattern id and per
// category; escalation uses whichever is larger.
type Manager struct {
	mu             sync.Mutex
	cfg            Config
	patternCounts  map[string]int
	categoryCounts map[pattern.Category]int
}

// NewManager creates a severity manager with the given config.
func NewManager(cfg Config) *Manager {
	if cfg.Default == "" {
		cfg.Default = pattern.SeverityWarning
	}
	if len(cfg.EscalationRules) == 0 {
		cfg.EscalationRules = DefaultEscalationRules()
	}
	return &Manager{
		cfg:            cfg,
		patternCounts:  make(map[string]int),
		categoryCounts: make(map[pattern.Category]int),
	}
}

// GetEffectiveSeverity resolves the base severity for a pattern without
// escalation: pattern override, then category override, then the built-in
// category default, then the global default.
func (m *Manager) GetEffectiveSeverity(patternID string, category pattern.Category) pattern.Severity {
	if s, ok := m.cfg.PatternOverrides[patternID]; ok && s.IsValid() {
		return s
	}
	if s, ok := m.cfg.CategoryOverrides[category]; ok && s.IsValid() {
		return s
	}
	if s, ok := defaultsByCategory[category]; ok {
		return s
	}
	return m.cfg.Default
}

// GetEffectiveSeverityWithEscalation resolves the base severity and then
// applies escalation against the current tracked counts.
func (m *Manager) GetEffectiveSeverityWithEscalation(patternID string, category pattern.Category) pattern.Severity {
	base := m.GetEffectiveSeverity(patternID, category)
	return m.ApplyEscalation(base, patternID, category)
}

// ApplyEscalation promotes base according to the configured rules and the
// tracked count max(patternCount, categoryCount). When several rules share
// the same From, the rule with the highest satisfied AfterCount wins.
func (m *Manager) ApplyEscalation(base pattern.Severity, patternID string, category pattern.Category) pattern.Severity {
	if !m.cfg.EscalationEnabled {
		return base
	}

	m.mu.Lock()
	count := m.patternCounts[patternID]
	if c := m.categoryCounts[category]; c > count {
		count = c
	}
	m.mu.Unlock()

	var best *EscalationRule
	for i := range m.cfg.EscalationRules {
		r := &m.cfg.EscalationRules[i]
		if r.From != base || count < r.AfterCount {
			continue
		}
		if best == nil || r.AfterCount > best.AfterCount {
			best = r
		}
	}
	if best == nil {
		return base
	}
	return best.To
}

// RecordViolation increments the tracked counts for a pattern and its
// category. The engine records each produced violation before resolving its
// severity, so the AfterCount-th occurrence itself is already escalated.
func (m *Manager) RecordViolation(patternID string, category pattern.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patternCounts[patternID]++
	m.categoryCounts[category]++
}

// ViolationCount returns the tracked count for a pattern id.
func (m *Manager) ViolationCount(patternID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patternCounts[patternID]
}

// SeedCounts pre-loads tracked counts, typically from the durable history
// store, so escalation carries across processes.
func (m *Manager) SeedCounts(patternCounts map[string]int, categoryCounts map[pattern.Category]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, n := range patternCounts {
		m.patternCounts[id] = n
	}
	for c, n := range categoryCounts {
		m.categoryCounts[c] = n
	}
}

// Reset clears all tracked counts.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patternCounts = make(map[string]int)
	m.categoryCounts = make(map[pattern.Category]int)
}
