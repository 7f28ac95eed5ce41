// Package rules orchestrates evaluation: it feeds files and patterns to
// the external matcher, turns raw matches into severity-ranked
// violations with escalation and occurrence tracking, and enforces
// per-file and per-pattern caps.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/severity"
)

// Error codes attached to recoverable evaluation diagnostics.
const (
	CodeMatcherFailed     = "MATCHER_FAILED"
	CodeInvalidDetector   = "INVALID_DETECTOR"
	CodeParserUnavailable = "PARSER_UNAVAILABLE"
)

// EvalError is a non-fatal diagnostic attached to a result instead of
// aborting the run.
type EvalError struct {
	Message     string `json:"message"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
}

// Input is one file to evaluate.
type Input struct {
	File        string
	Content     string
	Language    string
	ProjectRoot string
}

// Result is the outcome of evaluating one (file, pattern) pair.
type Result struct {
	Violations []*pattern.Violation `json:"violations"`
	Passed     bool                 `json:"passed"`
	Duration   time.Duration        `json:"duration"`
	Errors     []EvalError          `json:"errors,omitempty"`
}

// Summary aggregates an evaluateAll/evaluateFiles run.
type Summary struct {
	RulesPassed          int                      `json:"rulesPassed"`
	RulesFailed          int                      `json:"rulesFailed"`
	TotalViolations      int                      `json:"totalViolations"`
	ViolationsBySeverity map[pattern.Severity]int `json:"violationsBySeverity"`
	FilesEvaluated       int                      `json:"filesEvaluated"`
	Duration             time.Duration            `json:"duration"`
	Errors               []EvalError              `json:"errors,omitempty"`
}

// Options configures an Engine.
type Options struct {
	MaxViolationsPerFile    int
	MaxViolationsPerPattern int
	// TrackOccurrences feeds produced violations into the severity
	// manager's escalation counters.
	TrackOccurrences bool
	DefinitionCache  int
	Clock            func() time.Time
}

// occurrenceState deduplicates violations by (patternId, file, start)
// across evaluation calls within one process lifetime.
type occurrenceState struct {
	count     int
	firstSeen time.Time
}

// Engine evaluates patterns against files. All violation production
// flows through it; caps and occurrence counters are cumulative for one
// evaluation session until Reset.
type Engine struct {
	mu          sync.Mutex
	matcher     Matcher
	parser      Parser
	sev         *severity.Manager
	defs        *definitionCache
	opts        Options
	occurrences map[string]*occurrenceState
	perPattern  map[string]int
	perFile     map[string]int
}

// NewEngine wires the consumed matcher and parser to the severity
// manager. Parser may be nil; files are then evaluated without ASTs.
func NewEngine(matcher Matcher, parser Parser, sev *severity.Manager, opts Options) *Engine {
	if opts.MaxViolationsPerFile <= 0 {
		opts.MaxViolationsPerFile = 100
	}
	if opts.MaxViolationsPerPattern <= 0 {
		opts.MaxViolationsPerPattern = 50
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Engine{
		matcher:     matcher,
		parser:      parser,
		sev:         sev,
		defs:        newDefinitionCache(opts.DefinitionCache),
		opts:        opts,
		occurrences: make(map[string]*occurrenceState),
		perPattern:  make(map[string]int),
		perFile:     make(map[string]int),
	}
}

// Evaluate runs one (file, pattern) pair. Matcher failures are caught
// and downgraded to recoverable diagnostics; the result still reports
// passed based on the violations produced.
func (e *Engine) Evaluate(ctx context.Context, in Input, p *pattern.Pattern) Result {
	start := e.opts.Clock()
	result := Result{}

	def, err := e.defs.get(p)
	if err != nil {
		result.Errors = append(result.Errors, EvalError{
			Message:     err.Error(),
			Code:        CodeInvalidDetector,
			Recoverable: true,
		})
		result.Passed = true
		result.Duration = e.opts.Clock().Sub(start)
		return result
	}

	mc := MatchContext{
		File:        in.File,
		Content:     in.Content,
		Language:    in.Language,
		ProjectRoot: in.ProjectRoot,
	}
	if e.parser != nil {
		ast, perr := e.parser.Parse(in.File, in.Content)
		if perr != nil {
			// Matching proceeds without an AST; regex and structural
			// detectors do not need one.
			logger.Debug("parse %s: %v", in.File, perr)
			result.Errors = append(result.Errors, EvalError{
				Message:     fmt.Sprintf("parse %s: %v", in.File, perr),
				Code:        CodeParserUnavailable,
				Recoverable: true,
			})
		}
		mc.AST = ast
	}

	matches, merr := e.matcher.Match(ctx, mc, def, MatchOptions{})
	if merr != nil {
		result.Errors = append(result.Errors, EvalError{
			Message:     fmt.Sprintf("matcher failed for pattern %s on %s: %v", p.ID, in.File, merr),
			Code:        CodeMatcherFailed,
			Recoverable: true,
		})
	}

	e.mu.Lock()
	// Source 1: outlier-flagged matcher results.
	for _, m := range matches {
		if !m.IsOutlier {
			continue
		}
		v := e.buildViolationLocked(p, in.File, m.Location, m.OutlierReason, m.MatchedText)
		if v != nil {
			result.Violations = append(result.Violations, v)
		}
	}
	// Source 2: pattern-declared outlier locations in this file.
	for _, o := range p.Outliers {
		if o.File != in.File {
			continue
		}
		v := e.buildViolationLocked(p, in.File, o.Location, o.Reason, "")
		if v != nil {
			result.Violations = append(result.Violations, v)
		}
	}
	// Source 3: missing-pattern check. Only files where the pattern
	// declares an expected location are eligible; there is no
	// codebase-wide "should exist somewhere" check.
	if merr == nil && len(matches) == 0 && p.HasLocationIn(in.File) {
		loc := firstLocationIn(p, in.File)
		v := e.buildViolationLocked(p, in.File, loc, "", "")
		if v != nil {
			v.Message = fmt.Sprintf("expected pattern %q was not found in %s", p.Name, in.File)
			v.Actual = "Pattern not found"
			result.Violations = append(result.Violations, v)
		}
	}
	e.mu.Unlock()

	result.Passed = len(result.Violations) == 0
	result.Duration = e.opts.Clock().Sub(start)
	return result
}

// buildViolationLocked converts one deviation into a violation, applies
// caps, records the occurrence, and resolves severity with escalation.
// The occurrence is recorded before severity resolution, so the
// AfterCount-th violation itself is already escalated. Returns nil when
// a cap dropped the violation. Caller holds e.mu.
func (e *Engine) buildViolationLocked(p *pattern.Pattern, file string, loc pattern.Location, reason, matchedText string) *pattern.Violation {
	if e.perPattern[p.ID] >= e.opts.MaxViolationsPerPattern || e.perFile[file] >= e.opts.MaxViolationsPerFile {
		return nil
	}
	e.perPattern[p.ID]++
	e.perFile[file]++

	rng := rangeFromLocation(loc)
	now := e.opts.Clock()

	occKey := fmt.Sprintf("%s|%s|%d:%d", p.ID, file, rng.Start.Line, rng.Start.Character)
	occ := e.occurrences[occKey]
	if occ == nil {
		occ = &occurrenceState{firstSeen: now}
		e.occurrences[occKey] = occ
	}
	occ.count++

	var sev pattern.Severity
	if e.opts.TrackOccurrences {
		e.sev.RecordViolation(p.ID, p.Category)
		sev = e.sev.GetEffectiveSeverityWithEscalation(p.ID, p.Category)
	} else {
		sev = e.sev.GetEffectiveSeverity(p.ID, p.Category)
	}

	message := fmt.Sprintf("deviation from pattern %q", p.Name)
	if reason != "" {
		message = reason
	}
	return &pattern.Violation{
		ID:                 pattern.NewID("vio"),
		PatternID:          p.ID,
		Severity:           sev,
		File:               file,
		Range:              rng,
		Message:            message,
		Expected:           p.Description,
		Actual:             matchedText,
		Occurrences:        occ.count,
		FirstSeen:          occ.firstSeen,
		AIExplainAvailable: true,
		AIFixAvailable:     p.AutoFixable,
	}
}

// EvaluateAll runs every pattern against every file sequentially and
// aggregates a summary.
func (e *Engine) EvaluateAll(ctx context.Context, inputs []Input, patterns []*pattern.Pattern) ([]*pattern.Violation, Summary) {
	start := e.opts.Clock()
	summary := Summary{ViolationsBySeverity: make(map[pattern.Severity]int)}
	var all []*pattern.Violation
	for _, in := range inputs {
		summary.FilesEvaluated++
		for _, p := range patterns {
			res := e.Evaluate(ctx, in, p)
			if res.Passed {
				summary.RulesPassed++
			} else {
				summary.RulesFailed++
			}
			summary.Errors = append(summary.Errors, res.Errors...)
			for _, v := range res.Violations {
				summary.TotalViolations++
				summary.ViolationsBySeverity[v.Severity]++
				all = append(all, v)
			}
		}
	}
	summary.Duration = e.opts.Clock().Sub(start)
	return all, summary
}

// EvaluateFiles is EvaluateAll restricted to approved patterns.
func (e *Engine) EvaluateFiles(ctx context.Context, inputs []Input, patterns []*pattern.Pattern) ([]*pattern.Violation, Summary) {
	approved := make([]*pattern.Pattern, 0, len(patterns))
	for _, p := range patterns {
		if p.Status == pattern.StatusApproved {
			approved = append(approved, p)
		}
	}
	return e.EvaluateAll(ctx, inputs, approved)
}

// Reset clears the session state: occurrence dedup, caps, escalation
// counters, and the definition cache.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.occurrences = make(map[string]*occurrenceState)
	e.perPattern = make(map[string]int)
	e.perFile = make(map[string]int)
	e.mu.Unlock()
	e.defs.purge()
	e.sev.Reset()
}

// rangeFromLocation converts a 1-indexed location into a 0-indexed
// violation range.
func rangeFromLocation(loc pattern.Location) pattern.Range {
	start := pattern.Position{Line: loc.Line - 1, Character: max0(loc.Column - 1)}
	end := start
	if loc.EndLine > 0 {
		end = pattern.Position{Line: loc.EndLine - 1, Character: max0(loc.EndColumn - 1)}
	}
	return pattern.Range{Start: start, End: end}
}

func firstLocationIn(p *pattern.Pattern, file string) pattern.Location {
	for _, loc := range p.Locations {
		if loc.File == file {
			return loc
		}
	}
	return pattern.Location{File: file, Line: 1, Column: 1}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
