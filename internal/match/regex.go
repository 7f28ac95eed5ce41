// Package match provides the built-in regex matcher. It covers only
// regex detectors; AST, semantic, structural, and custom detectors are
// served by external matchers plugged into the same interface.
package match

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/rules"
)

// RegexMatcher matches file content against a pattern's regex detector.
// Compiled expressions are cached.
type RegexMatcher struct {
	compiled *lru.Cache[string, *regexp.Regexp]
}

// NewRegexMatcher creates a matcher with a bounded compilation cache.
func NewRegexMatcher() *RegexMatcher {
	c, _ := lru.New[string, *regexp.Regexp](128)
	return &RegexMatcher{compiled: c}
}

// Match returns one result per regex hit. Non-regex detectors yield no
// matches rather than an error, so other matchers can layer on top.
func (m *RegexMatcher) Match(ctx context.Context, mc rules.MatchContext, def *rules.PatternDefinition, _ rules.MatchOptions) ([]rules.PatternMatchResult, error) {
	if def.Type != pattern.DetectorRegex {
		return nil, nil
	}
	if def.Regex == nil || def.Regex.Pattern == "" {
		return nil, fmt.Errorf("pattern %s: empty regex", def.ID)
	}
	re, err := m.compile(def.Regex)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", def.ID, err)
	}

	var results []rules.PatternMatchResult
	for lineIdx, line := range strings.Split(mc.Content, "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, span := range re.FindAllStringIndex(line, -1) {
			results = append(results, rules.PatternMatchResult{
				Location: pattern.Location{
					File:      mc.File,
					Line:      lineIdx + 1,
					Column:    span[0] + 1,
					EndLine:   lineIdx + 1,
					EndColumn: span[1] + 1,
				},
				Confidence:  def.Confidence,
				MatchedText: line[span[0]:span[1]],
			})
		}
	}
	return results, nil
}

func (m *RegexMatcher) compile(rd *pattern.RegexDetector) (*regexp.Regexp, error) {
	expr := rd.Pattern
	var flags []string
	if strings.Contains(rd.Flags, "i") {
		flags = append(flags, "i")
	}
	if rd.Multiline || strings.Contains(rd.Flags, "m") {
		flags = append(flags, "m")
	}
	if len(flags) > 0 {
		expr = "(?" + strings.Join(flags, "") + ")" + expr
	}
	if re, ok := m.compiled.Get(expr); ok {
		return re, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	m.compiled.Add(expr, re)
	return re, nil
}
