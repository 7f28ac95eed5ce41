package store

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattepiu/drift/internal/pattern"
)

// Filter is a conjunctive predicate set: every non-zero field must
// match for a pattern to pass.
type Filter struct {
	IDs              []string
	Categories       []pattern.Category
	Statuses         []pattern.Status
	MinConfidence    *float64
	MaxConfidence    *float64
	ConfidenceLevels []pattern.ConfidenceLevel
	Severities       []pattern.Severity
	File             string
	HasOutliers      *bool
	Tags             []string
	Search           string
	CreatedAfter     *time.Time
	CreatedBefore    *time.Time
}

// SortField selects the ordering key for query results.
type SortField string

const (
	SortByName          SortField = "name"
	SortByConfidence    SortField = "confidence"
	SortBySeverity      SortField = "severity"
	SortByFirstSeen     SortField = "firstSeen"
	SortByLastSeen      SortField = "lastSeen"
	SortByLocationCount SortField = "locationCount"
)

// Sort describes the requested ordering.
type Sort struct {
	Field      SortField
	Descending bool
}

// Page is offset/limit pagination. A zero limit returns everything
// from the offset onward.
type Page struct {
	Offset int
	Limit  int
}

// QueryResult carries one page plus the unpaginated total.
type QueryResult struct {
	Patterns []*pattern.Pattern `json:"patterns"`
	Total    int                `json:"total"`
	HasMore  bool               `json:"hasMore"`
}

// Query filters, sorts, and paginates the stored patterns. Returned
// patterns are copies.
func (s *Store) Query(filter Filter, sortBy Sort, page Page) QueryResult {
	s.mu.RLock()
	matched := make([]*pattern.Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		if filter.matches(p) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	applySort(matched, sortBy)

	total := len(matched)
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if page.Limit > 0 && offset+page.Limit < end {
		end = offset + page.Limit
	}

	out := make([]*pattern.Pattern, 0, end-offset)
	for _, p := range matched[offset:end] {
		out = append(out, p.Clone())
	}
	return QueryResult{
		Patterns: out,
		Total:    total,
		HasMore:  offset+len(out) < total,
	}
}

func (f *Filter) matches(p *pattern.Pattern) bool {
	if len(f.IDs) > 0 && !containsString(f.IDs, p.ID) {
		return false
	}
	if len(f.Categories) > 0 && !containsCategory(f.Categories, p.Category) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, p.Status) {
		return false
	}
	if f.MinConfidence != nil && p.Confidence < *f.MinConfidence {
		return false
	}
	if f.MaxConfidence != nil && p.Confidence > *f.MaxConfidence {
		return false
	}
	if len(f.ConfidenceLevels) > 0 && !containsLevel(f.ConfidenceLevels, p.ConfidenceLevel) {
		return false
	}
	if len(f.Severities) > 0 && !containsSeverity(f.Severities, p.Severity) {
		return false
	}
	if f.File != "" && !p.HasLocationIn(f.File) {
		return false
	}
	if f.HasOutliers != nil && (len(p.Outliers) > 0) != *f.HasOutliers {
		return false
	}
	if len(f.Tags) > 0 && !intersects(f.Tags, p.Tags) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	if f.CreatedAfter != nil && p.FirstSeen.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && p.FirstSeen.After(*f.CreatedBefore) {
		return false
	}
	return true
}

func applySort(patterns []*pattern.Pattern, by Sort) {
	if by.Field == "" {
		sortPatternsByID(patterns)
		return
	}
	less := lessFunc(by.Field)
	sort.SliceStable(patterns, func(i, j int) bool {
		if by.Descending {
			i, j = j, i
		}
		return less(patterns[i], patterns[j])
	})
}

func lessFunc(field SortField) func(a, b *pattern.Pattern) bool {
	switch field {
	case SortByConfidence:
		return func(a, b *pattern.Pattern) bool { return a.Confidence < b.Confidence }
	case SortBySeverity:
		return func(a, b *pattern.Pattern) bool { return a.Severity.Rank() < b.Severity.Rank() }
	case SortByFirstSeen:
		return func(a, b *pattern.Pattern) bool { return a.FirstSeen.Before(b.FirstSeen) }
	case SortByLastSeen:
		return func(a, b *pattern.Pattern) bool { return a.LastSeen.Before(b.LastSeen) }
	case SortByLocationCount:
		return func(a, b *pattern.Pattern) bool { return len(a.Locations) < len(b.Locations) }
	default:
		return func(a, b *pattern.Pattern) bool { return a.Name < b.Name }
	}
}

func sortPatternsByID(patterns []*pattern.Pattern) {
	sort.Slice(patterns, func(i, j int) bool { return patterns[i].ID < patterns[j].ID })
}

// StorageStats summarizes the in-memory and on-disk state.
type StorageStats struct {
	TotalPatterns   int                      `json:"totalPatterns"`
	ByStatus        map[pattern.Status]int   `json:"byStatus"`
	ByCategory      map[pattern.Category]int `json:"byCategory"`
	DirtyCategories int                      `json:"dirtyCategories"`
	FileCount       int                      `json:"fileCount"`
	DiskBytes       int64                    `json:"diskBytes"`
	LastSaved       time.Time                `json:"lastSaved,omitempty"`
}

// Stats reports pattern counts and on-disk footprint.
func (s *Store) Stats() StorageStats {
	s.mu.RLock()
	stats := StorageStats{
		TotalPatterns:   len(s.patterns),
		ByStatus:        make(map[pattern.Status]int),
		ByCategory:      make(map[pattern.Category]int),
		DirtyCategories: len(s.dirty),
		LastSaved:       s.lastSaved,
	}
	for _, p := range s.patterns {
		stats.ByStatus[p.Status]++
		stats.ByCategory[p.Category]++
	}
	dir := s.dir
	s.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		stats.FileCount++
		if info, err := e.Info(); err == nil {
			stats.DiskBytes += info.Size()
		}
	}
	return stats
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsCategory(list []pattern.Category, v pattern.Category) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsStatus(list []pattern.Status, v pattern.Status) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsLevel(list []pattern.ConfidenceLevel, v pattern.ConfidenceLevel) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsSeverity(list []pattern.Severity, v pattern.Severity) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
