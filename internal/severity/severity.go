// Package severity resolves the effective severity of pattern violations.
// Resolution walks pattern override -> category override -> built-in
// category defaults -> global default, then optionally applies
// count-driven escalation.
package severity

import (
	"sort"

	"github.com/mattepiu/drift/internal/pattern"
)

// defaultsByCategory is the built-in default severity per category.
// Security-sensitive categories default to error; advisory categories to
// hint; everything else to warning.
var defaultsByCategory = map[pattern.Category]pattern.Severity{
	pattern.CategorySecurity:      pattern.SeverityError,
	pattern.CategoryAuth:          pattern.SeverityError,
	pattern.CategoryAPI:           pattern.SeverityWarning,
	pattern.CategoryErrors:        pattern.SeverityWarning,
	pattern.CategoryLogging:       pattern.SeverityWarning,
	pattern.CategoryDataAccess:    pattern.SeverityWarning,
	pattern.CategoryConfig:        pattern.SeverityWarning,
	pattern.CategoryTesting:       pattern.SeverityWarning,
	pattern.CategoryComponents:    pattern.SeverityWarning,
	pattern.CategoryStructural:    pattern.SeverityWarning,
	pattern.CategoryTypes:         pattern.SeverityWarning,
	pattern.CategoryNaming:        pattern.SeverityWarning,
	pattern.CategoryComplexity:    pattern.SeverityWarning,
	pattern.CategoryPerformance:   pattern.SeverityHint,
	pattern.CategoryDocumentation: pattern.SeverityHint,
}

// DefaultForCategory returns the built-in default severity for a category,
// falling back to warning for unknown categories.
func DefaultForCategory(category pattern.Category) pattern.Severity {
	if s, ok := defaultsByCategory[category]; ok {
		return s
	}
	return pattern.SeverityWarning
}

// IsBlocking reports whether a severity should block (gate) a run. Only
// error blocks.
func IsBlocking(s pattern.Severity) bool {
	return s == pattern.SeverityError
}

// SortBySeverity orders violations most severe first. The sort is stable so
// violations of equal severity keep their evaluation order.
func SortBySeverity(violations []*pattern.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Severity.Rank() > violations[j].Severity.Rank()
	})
}

// SortBySeverityAscending orders violations least severe first.
func SortBySeverityAscending(violations []*pattern.Violation) {
	sort.SliceStable(violations, func(i, j int) bool {
		return violations[i].Severity.Rank() < violations[j].Severity.Rank()
	})
}

// GroupBySeverity buckets violations by their severity.
func GroupBySeverity(violations []*pattern.Violation) map[pattern.Severity][]*pattern.Violation {
	groups := make(map[pattern.Severity][]*pattern.Violation)
	for _, v := range violations {
		groups[v.Severity] = append(groups[v.Severity], v)
	}
	return groups
}

// FilterByMinSeverity keeps violations at or above the given severity.
func FilterByMinSeverity(violations []*pattern.Violation, minimum pattern.Severity) []*pattern.Violation {
	var out []*pattern.Violation
	for _, v := range violations {
		if v.Severity.Rank() >= minimum.Rank() {
			out = append(out, v)
		}
	}
	return out
}

// FilterByMaxSeverity keeps violations at or below the given severity.
func FilterByMaxSeverity(violations []*pattern.Violation, maximum pattern.Severity) []*pattern.Violation {
	var out []*pattern.Violation
	for _, v := range violations {
		if v.Severity.Rank() <= maximum.Rank() {
			out = append(out, v)
		}
	}
	return out
}
