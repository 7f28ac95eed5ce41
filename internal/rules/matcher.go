package rules

import (
	"context"

	"github.com/mattepiu/drift/internal/pattern"
)

// MatchContext is the per-file input handed to the external matcher.
// AST is nil when parsing failed; regex and structural detectors still
// run in that case.
type MatchContext struct {
	File        string
	Content     string
	AST         any
	Language    string
	ProjectRoot string
}

// PatternMatchResult is one raw match from the external matcher.
type PatternMatchResult struct {
	Location      pattern.Location
	Confidence    float64
	IsOutlier     bool
	OutlierReason string
	MatchedText   string
}

// MatchOptions tunes a single matcher invocation.
type MatchOptions struct {
	MaxMatches int
}

// Matcher is the consumed matching interface. The engine never
// implements matching itself; it only shapes PatternDefinitions.
type Matcher interface {
	Match(ctx context.Context, mc MatchContext, def *PatternDefinition, opts MatchOptions) ([]PatternMatchResult, error)
}

// Parser supplies an AST per file. A nil AST with a nil error means
// "parsing failed"; the engine tolerates it.
type Parser interface {
	Parse(file, content string) (any, error)
}
