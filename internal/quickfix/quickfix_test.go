package quickfix

import (
	"strings"
	"testing"

	"github.com/mattepiu/drift/internal/pattern"
)

func replaceFix(file string, r pattern.Range, newText string) *pattern.QuickFix {
	return &pattern.QuickFix{
		Title: "Replace",
		Kind:  pattern.FixReplace,
		Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
			file: {{Range: r, NewText: newText}},
		}},
		Confidence: 0.9,
	}
}

func TestApplyFixReplace(t *testing.T) {
	content := "foo(bar)"
	r := pattern.Range{
		Start: pattern.Position{Line: 0, Character: 4},
		End:   pattern.Position{Line: 0, Character: 7},
	}
	fix := replaceFix("a.ts", r, "baz")

	got := ApplyFix(fix, content)
	if got != "foo(baz)" {
		t.Fatalf("ApplyFix = %q, want %q", got, "foo(baz)")
	}

	// Idempotence: applying again changes nothing.
	again := ApplyFix(fix, got)
	if again != got {
		t.Fatalf("second ApplyFix = %q, want %q", again, got)
	}
	if !IsIdempotent(fix, content) {
		t.Error("IsIdempotent = false for a self-consistent replace")
	}
}

func TestApplyFixReverseOrderMultipleEdits(t *testing.T) {
	content := "alpha beta gamma"
	fix := &pattern.QuickFix{
		Kind: pattern.FixReplace,
		Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
			"a.go": {
				// Deliberately in forward order; ApplyFix must reorder.
				{Range: pattern.Range{Start: pattern.Position{Line: 0, Character: 0}, End: pattern.Position{Line: 0, Character: 5}}, NewText: "ALPHA"},
				{Range: pattern.Range{Start: pattern.Position{Line: 0, Character: 11}, End: pattern.Position{Line: 0, Character: 16}}, NewText: "GAMMA"},
			},
		}},
	}

	got := ApplyFix(fix, content)
	if got != "ALPHA beta GAMMA" {
		t.Fatalf("ApplyFix = %q, want %q", got, "ALPHA beta GAMMA")
	}
}

func TestApplyFixMultilineDelete(t *testing.T) {
	content := "keep\ndrop1\ndrop2\nkeep2"
	fix := &pattern.QuickFix{
		Kind: pattern.FixDelete,
		Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
			"a.go": {{
				Range: pattern.Range{
					Start: pattern.Position{Line: 1, Character: 0},
					End:   pattern.Position{Line: 3, Character: 0},
				},
				NewText: "",
			}},
		}},
	}

	got := ApplyFix(fix, content)
	if got != "keep\nkeep2" {
		t.Fatalf("ApplyFix = %q, want %q", got, "keep\nkeep2")
	}
}

func TestIsIdempotentCounterCase(t *testing.T) {
	// A deletion at a fixed range is not idempotent when different text
	// slides into the range after the first application: the second
	// application deletes again.
	content := "aaaa"
	fix := &pattern.QuickFix{
		Kind: pattern.FixDelete,
		Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
			"a.go": {{
				Range: pattern.Range{
					Start: pattern.Position{Line: 0, Character: 0},
					End:   pattern.Position{Line: 0, Character: 2},
				},
				NewText: "",
			}},
		}},
	}
	if IsIdempotent(fix, content) {
		t.Error("expected non-idempotent fix to be detected")
	}
}

func TestValidateFix(t *testing.T) {
	content := "one\ntwo\nthree"
	mk := func(startLine, startCh, endLine, endCh int) *pattern.QuickFix {
		return replaceFix("a.go", pattern.Range{
			Start: pattern.Position{Line: startLine, Character: startCh},
			End:   pattern.Position{Line: endLine, Character: endCh},
		}, "x")
	}

	if err := ValidateFix(mk(0, 0, 2, 3), content); err != nil {
		t.Errorf("valid fix rejected: %v", err)
	}
	if err := ValidateFix(mk(3, 0, 3, 0), content); err == nil {
		t.Error("start line beyond content accepted")
	}
	if err := ValidateFix(mk(-1, 0, 0, 0), content); err == nil {
		t.Error("negative start line accepted")
	}
	if err := ValidateFix(mk(2, 0, 1, 0), content); err == nil {
		t.Error("inverted range accepted")
	}
	if err := ValidateFix(mk(1, 3, 1, 1), content); err == nil {
		t.Error("inverted columns on same line accepted")
	}
}

func TestGenerateFixesRankingAndPreferred(t *testing.T) {
	g := NewGenerator(DefaultOptions())
	v := &pattern.Violation{
		PatternID: "pat_naming",
		File:      "a.go",
		Range: pattern.Range{
			Start: pattern.Position{Line: 0, Character: 0},
			End:   pattern.Position{Line: 0, Character: 7},
		},
		Message:  "identifier violates naming convention, rename to match",
		Expected: "userID",
		Actual:   "user_id",
	}
	content := "user_id := 1"

	result := g.GenerateFixes(v, content)
	if !result.HasFixes {
		t.Fatal("expected fixes")
	}
	// Replace (0.9) outranks Rename (0.8); both can handle this violation.
	if result.Fixes[0].Kind != pattern.FixReplace {
		t.Errorf("top fix = %s, want replace", result.Fixes[0].Kind)
	}
	if !result.Fixes[0].IsPreferred {
		t.Error("top fix not marked preferred")
	}
	for i := 1; i < len(result.Fixes); i++ {
		if result.Fixes[i].IsPreferred {
			t.Error("non-top fix marked preferred")
		}
		if result.Fixes[i].Confidence > result.Fixes[i-1].Confidence {
			t.Error("fixes not sorted descending by confidence")
		}
	}
	if result.PreferredFix == nil || result.PreferredFix.Kind != pattern.FixReplace {
		t.Error("PreferredFix not set to top fix")
	}

	got := ApplyFix(result.PreferredFix, content)
	if got != "userID := 1" {
		t.Errorf("applying preferred fix = %q", got)
	}
}

func TestGenerateFixesMinConfidenceFilter(t *testing.T) {
	g := NewGenerator(Options{MinConfidence: 0.95, MaxFixesPerViolation: 5})
	v := &pattern.Violation{
		File:     "a.go",
		Message:  "rename to match convention",
		Expected: "userID",
		Actual:   "user_id",
	}
	result := g.GenerateFixes(v, "user_id := 1")
	if result.HasFixes {
		t.Errorf("expected no fixes above confidence 0.95, got %d", len(result.Fixes))
	}
	if result.PreferredFix != nil {
		t.Error("PreferredFix should be nil when nothing survives")
	}
}

func TestGenerateFixesMaxTruncation(t *testing.T) {
	g := NewGenerator(Options{MinConfidence: 0.1, MaxFixesPerViolation: 1})
	v := &pattern.Violation{
		File:     "a.go",
		Message:  "rename: unused identifier, remove it",
		Expected: "x",
		Actual:   "y",
	}
	result := g.GenerateFixes(v, "y := 1")
	if len(result.Fixes) != 1 {
		t.Errorf("expected truncation to 1 fix, got %d", len(result.Fixes))
	}
}

func TestGenerateImportFix(t *testing.T) {
	g := NewGenerator(Options{Language: "go"})
	v := &pattern.Violation{
		File:     "a.go",
		Message:  "missing import for logging package",
		Expected: "log/slog",
	}
	content := "package a\n"
	result := g.GenerateFixes(v, content)
	if !result.HasFixes {
		t.Fatal("expected an import fix")
	}
	fix := result.PreferredFix
	if fix.Kind != pattern.FixImport {
		t.Fatalf("kind = %s, want import", fix.Kind)
	}
	got := ApplyFix(fix, content)
	if !strings.HasPrefix(got, "import \"log/slog\"\n") {
		t.Errorf("applied import fix = %q", got)
	}
	// A zero-width insertion never equals its target range, so repeated
	// application duplicates the line; IsIdempotent must report that.
	if IsIdempotent(fix, content) {
		t.Error("file-start insertion should not be reported idempotent")
	}
}

func TestGenerateWrapFixUsesLanguageTemplate(t *testing.T) {
	g := NewGenerator(Options{Language: "python"})
	v := &pattern.Violation{
		File:    "a.py",
		Message: "unhandled error path, wrap with error handling",
		Actual:  "do_thing()",
		Range: pattern.Range{
			Start: pattern.Position{Line: 0, Character: 0},
			End:   pattern.Position{Line: 0, Character: 10},
		},
	}
	result := g.GenerateFixes(v, "do_thing()")
	if !result.HasFixes {
		t.Fatal("expected a wrap fix")
	}
	found := false
	for _, f := range result.Fixes {
		if f.Kind == pattern.FixWrap {
			found = true
			edits := f.Edit.Changes["a.py"]
			if len(edits) != 1 || !strings.Contains(edits[0].NewText, "except Exception:") {
				t.Errorf("wrap template not python-flavored: %q", edits[0].NewText)
			}
		}
	}
	if !found {
		t.Error("no wrap fix generated")
	}
}

func TestCalculateImpact(t *testing.T) {
	small := replaceFix("a.go", pattern.Range{
		Start: pattern.Position{Line: 0, Character: 0},
		End:   pattern.Position{Line: 0, Character: 3},
	}, "x")
	impact := CalculateImpact(small)
	if impact.RiskLevel != "low" || impact.BreakingChange {
		t.Errorf("small fix impact = %+v, want low/non-breaking", impact)
	}

	bigDelete := &pattern.QuickFix{
		Kind: pattern.FixDelete,
		Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
			"a.go": {{
				Range: pattern.Range{
					Start: pattern.Position{Line: 0, Character: 0},
					End:   pattern.Position{Line: 20, Character: 0},
				},
				NewText: "",
			}},
		}},
	}
	impact = CalculateImpact(bigDelete)
	if impact.RiskLevel != "medium" {
		t.Errorf("riskLevel = %s, want medium for 21 lines", impact.RiskLevel)
	}
	if !impact.BreakingChange {
		t.Error("deletion spanning >5 lines should flag breakingChange")
	}

	exporting := replaceFix("a.ts", pattern.Range{}, "export const x = 1")
	if !CalculateImpact(exporting).BreakingChange {
		t.Error("inserted export token should flag breakingChange")
	}

	multiFile := &pattern.QuickFix{Edit: pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
		"a.go": {{NewText: "x"}}, "b.go": {{NewText: "x"}}, "c.go": {{NewText: "x"}}, "d.go": {{NewText: "x"}},
	}}}
	if CalculateImpact(multiFile).RiskLevel != "high" {
		t.Error("4 files should be high risk")
	}
}
