package rules

import (
	"context"

	"github.com/mattepiu/drift/internal/history"
	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/quickfix"
	"github.com/mattepiu/drift/internal/variant"
)

// Pipeline runs the full enforcement flow for a set of files: engine
// evaluation, variant and inline suppression, quick-fix attachment, and
// optional durable occurrence recording.
type Pipeline struct {
	Engine   *Engine
	Variants *variant.Manager
	Fixes    *quickfix.Generator
	History  *history.Store
}

// PipelineResult is the surfaced outcome after suppression.
type PipelineResult struct {
	Violations []*pattern.Violation `json:"violations"`
	Suppressed int                  `json:"suppressed"`
	Summary    Summary              `json:"summary"`
}

// Run evaluates the inputs against the patterns and filters and
// decorates the resulting violations. Violations suppressed by a
// variant or an inline directive are dropped before quick-fix
// generation. History recording is best-effort.
func (pl *Pipeline) Run(ctx context.Context, inputs []Input, patterns []*pattern.Pattern) PipelineResult {
	violations, summary := pl.Engine.EvaluateAll(ctx, inputs, patterns)

	contentByFile := make(map[string]string, len(inputs))
	for _, in := range inputs {
		contentByFile[in.File] = in.Content
	}

	categoryByPattern := make(map[string]pattern.Category, len(patterns))
	for _, p := range patterns {
		categoryByPattern[p.ID] = p.Category
	}

	result := PipelineResult{Summary: summary}
	for _, v := range violations {
		if pl.Variants != nil && pl.Variants.IsLocationCovered(v.PatternID, v.Anchor()) {
			result.Suppressed++
			continue
		}
		if IsSuppressedInline(v, contentByFile[v.File]) {
			result.Suppressed++
			continue
		}
		if pl.Fixes != nil {
			fixes := pl.Fixes.GenerateFixes(v, contentByFile[v.File])
			if fixes.PreferredFix != nil {
				v.QuickFix = fixes.PreferredFix
				v.AIFixAvailable = true
			}
		}
		if pl.History != nil {
			err := pl.History.RecordOccurrence(ctx, history.Occurrence{
				PatternID: v.PatternID,
				Category:  categoryByPattern[v.PatternID],
				File:      v.File,
				Line:      v.Range.Start.Line + 1,
				Column:    v.Range.Start.Character + 1,
				Severity:  v.Severity,
			})
			if err != nil {
				logger.Error("history: %v", err)
			}
		}
		result.Violations = append(result.Violations, v)
	}
	return result
}
