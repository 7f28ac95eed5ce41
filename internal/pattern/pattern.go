// Package pattern defines the core domain model for the enforcement engine:
// patterns, their lifecycle, locations, violations, and quick fixes.
// Patterns are detected conventions; violations are derived deviations from
// approved patterns, produced at evaluation time.
package pattern

import (
	"time"

	"github.com/google/uuid"
)

// Pattern represents a detected coding convention.
type Pattern struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Detector    Detector `json:"detector"`

	// Confidence scoring. ConfidenceLevel is always derived from Confidence;
	// it is recomputed on every mutation and never trusted from disk.
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidenceLevel"`

	Locations []Location        `json:"locations,omitempty"`
	Outliers  []OutlierLocation `json:"outliers,omitempty"`

	Status   Status   `json:"status"`
	Severity Severity `json:"severity,omitempty"`

	FirstSeen  time.Time  `json:"firstSeen"`
	LastSeen   time.Time  `json:"lastSeen"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
	ApprovedBy string     `json:"approvedBy,omitempty"`

	Tags        []string       `json:"tags,omitempty"`
	AutoFixable bool           `json:"autoFixable"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Status represents the lifecycle status of a pattern.
type Status string

const (
	// StatusDiscovered means the pattern was found but not yet reviewed.
	StatusDiscovered Status = "discovered"
	// StatusApproved means the pattern was approved for enforcement.
	StatusApproved Status = "approved"
	// StatusIgnored means the pattern was explicitly ignored.
	StatusIgnored Status = "ignored"
)

// statusTransitions is the closed transition table. Any transition not
// listed here is rejected with InvalidStatusTransitionError.
var statusTransitions = map[Status][]Status{
	StatusDiscovered: {StatusApproved, StatusIgnored},
	StatusApproved:   {StatusIgnored},
	StatusIgnored:    {StatusApproved},
}

// IsValid reports whether s is a known lifecycle status.
func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition s -> target is permitted.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Location is a 1-indexed position range in a source file.
type Location struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"endLine,omitempty"`
	EndColumn int    `json:"endColumn,omitempty"`
}

// OutlierLocation is a known deviation recorded on the pattern itself,
// distinct from a Violation (which is evaluation output).
type OutlierLocation struct {
	Location
	Reason         string  `json:"reason"`
	DeviationScore float64 `json:"deviationScore,omitempty"`
}

// Category classifies a pattern into one of the supported domains.
type Category string

const (
	CategoryAPI           Category = "api"
	CategoryAuth          Category = "auth"
	CategorySecurity      Category = "security"
	CategoryErrors        Category = "errors"
	CategoryLogging       Category = "logging"
	CategoryDataAccess    Category = "data-access"
	CategoryConfig        Category = "config"
	CategoryTesting       Category = "testing"
	CategoryPerformance   Category = "performance"
	CategoryComponents    Category = "components"
	CategoryStructural    Category = "structural"
	CategoryTypes         Category = "types"
	CategoryDocumentation Category = "documentation"
	CategoryNaming        Category = "naming"
	CategoryComplexity    Category = "complexity"
)

// AllCategories returns every valid pattern category.
func AllCategories() []Category {
	return []Category{
		CategoryAPI,
		CategoryAuth,
		CategorySecurity,
		CategoryErrors,
		CategoryLogging,
		CategoryDataAccess,
		CategoryConfig,
		CategoryTesting,
		CategoryPerformance,
		CategoryComponents,
		CategoryStructural,
		CategoryTypes,
		CategoryDocumentation,
		CategoryNaming,
		CategoryComplexity,
	}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, cat := range AllCategories() {
		if c == cat {
			return true
		}
	}
	return false
}

// Severity ranks how serious a violation of a pattern is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityHint    Severity = "hint"
)

// severityRanks defines the fixed total order error > warning > info > hint.
var severityRanks = map[Severity]int{
	SeverityError:   4,
	SeverityWarning: 3,
	SeverityInfo:    2,
	SeverityHint:    1,
}

// Rank returns the numeric rank of the severity (error=4 .. hint=1).
// Unknown severities rank 0, below hint.
func (s Severity) Rank() int {
	return severityRanks[s]
}

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// NewID returns a prefixed short id like "pat_3f2a9c1d".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()[:8]
}

// Normalize fills defaults on a freshly constructed pattern and recomputes
// derived fields. The id, once set, is never reassigned.
func (p *Pattern) Normalize(now time.Time) {
	if p.ID == "" {
		p.ID = NewID("pat")
	}
	if p.Status == "" {
		p.Status = StatusDiscovered
	}
	if p.FirstSeen.IsZero() {
		p.FirstSeen = now
	}
	if p.LastSeen.IsZero() {
		p.LastSeen = now
	}
	p.ConfidenceLevel = LevelForConfidence(p.Confidence)
}

// SetConfidence updates the confidence score and re-derives the level.
func (p *Pattern) SetConfidence(score float64) {
	p.Confidence = score
	p.ConfidenceLevel = LevelForConfidence(score)
}

// HasLocationIn reports whether the pattern declares an expected location in
// the given file.
func (p *Pattern) HasLocationIn(file string) bool {
	for _, loc := range p.Locations {
		if loc.File == file {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the pattern. Callers that hand patterns to
// external code clone first so the store's copy cannot be mutated behind
// its back.
func (p *Pattern) Clone() *Pattern {
	cp := *p
	cp.Locations = append([]Location(nil), p.Locations...)
	cp.Outliers = append([]OutlierLocation(nil), p.Outliers...)
	cp.Tags = append([]string(nil), p.Tags...)
	if p.ApprovedAt != nil {
		t := *p.ApprovedAt
		cp.ApprovedAt = &t
	}
	if p.Metadata != nil {
		cp.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
