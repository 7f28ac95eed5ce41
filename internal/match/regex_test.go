package match

import (
	"context"
	"testing"

	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/rules"
)

func regexDef(expr, flags string) *rules.PatternDefinition {
	return &rules.PatternDefinition{
		ID:         "pat_1",
		Type:       pattern.DetectorRegex,
		Regex:      &pattern.RegexDetector{Pattern: expr, Flags: flags},
		Confidence: 0.9,
	}
}

func TestRegexMatcherLocations(t *testing.T) {
	m := NewRegexMatcher()
	content := "ok line\nconsole.log(a)\nmore console.log(b)\n"
	results, err := m.Match(context.Background(), rules.MatchContext{File: "a.ts", Content: content}, regexDef(`console\.log`, ""), rules.MatchOptions{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	first := results[0].Location
	if first.Line != 2 || first.Column != 1 || first.EndColumn != 12 {
		t.Errorf("first location = %+v", first)
	}
	if results[1].Location.Line != 3 || results[1].Location.Column != 6 {
		t.Errorf("second location = %+v", results[1].Location)
	}
	if results[0].MatchedText != "console.log" {
		t.Errorf("matchedText = %q", results[0].MatchedText)
	}
	if results[0].Confidence != 0.9 {
		t.Errorf("confidence = %v", results[0].Confidence)
	}
}

func TestRegexMatcherCaseInsensitiveFlag(t *testing.T) {
	m := NewRegexMatcher()
	results, err := m.Match(context.Background(), rules.MatchContext{File: "a.ts", Content: "TODO: later"}, regexDef("todo", "i"), rules.MatchOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1 with i flag", len(results))
	}
}

func TestRegexMatcherSkipsOtherDetectorTypes(t *testing.T) {
	m := NewRegexMatcher()
	def := &rules.PatternDefinition{
		ID:   "pat_ast",
		Type: pattern.DetectorAST,
		AST:  &pattern.ASTDetector{Query: "(call_expression)"},
	}
	results, err := m.Match(context.Background(), rules.MatchContext{File: "a.ts", Content: "x"}, def, rules.MatchOptions{})
	if err != nil || results != nil {
		t.Errorf("non-regex detector should be a silent no-op, got %v, %v", results, err)
	}
}

func TestRegexMatcherBadExpression(t *testing.T) {
	m := NewRegexMatcher()
	_, err := m.Match(context.Background(), rules.MatchContext{File: "a.ts", Content: "x"}, regexDef("(unclosed", ""), rules.MatchOptions{})
	if err == nil {
		t.Error("invalid regex accepted")
	}
}
