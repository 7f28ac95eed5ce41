// Package quickfix generates candidate code transformations for violations.
// Seven fixed strategies compete per violation; surviving fixes are ranked
// by confidence and applied with an idempotence guarantee.
package quickfix

import (
	"fmt"
	"sort"

	"github.com/mattepiu/drift/internal/pattern"
)

// Options controls fix generation.
type Options struct {
	// MinConfidence discards generated fixes below this score.
	MinConfidence float64

	// MaxFixesPerViolation truncates the ranked fix list.
	MaxFixesPerViolation int

	// Language hints language-appropriate templates (wrap/import snippets).
	Language string
}

// DefaultOptions returns the default generation options.
func DefaultOptions() Options {
	return Options{
		MinConfidence:        0.5,
		MaxFixesPerViolation: 5,
	}
}

// Generator produces ranked quick fixes for violations.
type Generator struct {
	opts Options
}

// NewGenerator creates a generator with the given options, filling zero
// values with defaults.
func NewGenerator(opts Options) *Generator {
	def := DefaultOptions()
	if opts.MinConfidence == 0 {
		opts.MinConfidence = def.MinConfidence
	}
	if opts.MaxFixesPerViolation == 0 {
		opts.MaxFixesPerViolation = def.MaxFixesPerViolation
	}
	return &Generator{opts: opts}
}

// Result is the outcome of generating fixes for one violation.
type Result struct {
	// Fixes is ranked descending by confidence.
	Fixes []pattern.QuickFix

	// PreferredFix is the top-ranked fix, nil when none survived.
	PreferredFix *pattern.QuickFix

	// HasFixes reports whether any fix survived filtering.
	HasFixes bool

	// Errors holds non-fatal per-strategy failures.
	Errors []string
}

// GenerateFixes runs every applicable strategy against the violation,
// filters by MinConfidence, ranks descending by confidence, truncates to
// MaxFixesPerViolation, and marks the top fix preferred.
func (g *Generator) GenerateFixes(v *pattern.Violation, content string) Result {
	var result Result

	ctx := &fixContext{
		violation: v,
		content:   content,
		language:  g.opts.Language,
	}

	for _, kind := range pattern.AllFixTypes() {
		if !canHandle(kind, v) {
			continue
		}
		fix, err := generate(kind, ctx)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", kind, err))
			continue
		}
		if fix == nil || fix.Confidence < g.opts.MinConfidence {
			continue
		}
		result.Fixes = append(result.Fixes, *fix)
	}

	// Stable sort keeps dispatch order among equal confidences.
	sort.SliceStable(result.Fixes, func(i, j int) bool {
		return result.Fixes[i].Confidence > result.Fixes[j].Confidence
	})

	if len(result.Fixes) > g.opts.MaxFixesPerViolation {
		result.Fixes = result.Fixes[:g.opts.MaxFixesPerViolation]
	}

	if len(result.Fixes) > 0 {
		result.Fixes[0].IsPreferred = true
		result.PreferredFix = &result.Fixes[0]
		result.HasFixes = true
	}

	return result
}

// fixContext bundles everything a strategy needs to build an edit.
type fixContext struct {
	violation *pattern.Violation
	content   string
	language  string
}

// rangeText extracts the text covered by the violation's range, empty when
// the range falls outside the content.
func (c *fixContext) rangeText() string {
	lines := splitLines(c.content)
	start, ok1 := offsetOf(lines, c.violation.Range.Start)
	end, ok2 := offsetOf(lines, c.violation.Range.End)
	if !ok1 || !ok2 || start > end {
		return ""
	}
	return c.content[start:end]
}
