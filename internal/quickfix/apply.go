package quickfix

import (
	"fmt"
	"strings"

	"github.com/mattepiu/drift/internal/pattern"
)

// ApplyFix applies every edit in the fix to content and returns the result.
// Edits are applied in strictly reverse document order (line descending,
// then column descending) so that earlier edits' offsets are never
// invalidated by later ones. Each edit is skipped when it is already
// satisfied, which makes application idempotent for self-consistent fixes:
// ApplyFix(ApplyFix(x)) == ApplyFix(x).
func ApplyFix(fix *pattern.QuickFix, content string) string {
	edits := collectEdits(fix)
	sortReverseDocumentOrder(edits)

	for _, edit := range edits {
		content = applyEdit(content, edit)
	}
	return content
}

// IsIdempotent reports whether applying the fix twice equals applying it
// once. Fixes with overlapping or mutually inconsistent edits can fail
// this; callers should check before offering automated re-application.
func IsIdempotent(fix *pattern.QuickFix, content string) bool {
	once := ApplyFix(fix, content)
	return ApplyFix(fix, once) == once
}

// ValidateFix rejects fixes whose ranges fall outside the content or are
// inverted.
func ValidateFix(fix *pattern.QuickFix, content string) error {
	lineCount := len(splitLines(content))
	for file, edits := range fix.Edit.Changes {
		for _, edit := range edits {
			r := edit.Range
			if r.Start.Line < 0 || r.Start.Line >= lineCount {
				return fmt.Errorf("%s: start line %d outside [0,%d)", file, r.Start.Line, lineCount)
			}
			if r.End.Line < 0 || r.End.Line >= lineCount {
				return fmt.Errorf("%s: end line %d outside [0,%d)", file, r.End.Line, lineCount)
			}
			if r.Start.Character < 0 || r.End.Character < 0 {
				return fmt.Errorf("%s: negative column", file)
			}
			if r.End.Before(r.Start) {
				return fmt.Errorf("%s: range start %d:%d after end %d:%d",
					file, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
			}
		}
	}
	return nil
}

// Impact describes the blast radius of a fix.
type Impact struct {
	LinesChanged   int    `json:"linesChanged"`
	FilesAffected  int    `json:"filesAffected"`
	RiskLevel      string `json:"riskLevel"` // low, medium, high
	BreakingChange bool   `json:"breakingChange"`
}

// exportTokens are surface-area markers; inserting one suggests the fix
// changes a public interface.
var exportTokens = []string{"export ", "module.exports", "public ", "pub "}

// CalculateImpact estimates risk for a fix. High risk: more than 50 lines
// changed or more than 3 files touched. Medium: more than 10 lines or more
// than one file. A deletion spanning more than 5 lines, or inserted text
// carrying an export-like token, flags a potential breaking change.
func CalculateImpact(fix *pattern.QuickFix) Impact {
	var impact Impact
	impact.FilesAffected = len(fix.Edit.Changes)

	for _, edits := range fix.Edit.Changes {
		for _, edit := range edits {
			spanLines := edit.Range.End.Line - edit.Range.Start.Line
			if !rangeEmpty(edit.Range) {
				spanLines++
			}
			newLines := 0
			if edit.NewText != "" {
				newLines = strings.Count(edit.NewText, "\n") + 1
			}
			if newLines > spanLines {
				impact.LinesChanged += newLines
			} else {
				impact.LinesChanged += spanLines
			}

			if edit.NewText == "" && edit.Range.End.Line-edit.Range.Start.Line > 5 {
				impact.BreakingChange = true
			}
			for _, tok := range exportTokens {
				if strings.Contains(edit.NewText, tok) {
					impact.BreakingChange = true
				}
			}
		}
	}

	switch {
	case impact.LinesChanged > 50 || impact.FilesAffected > 3:
		impact.RiskLevel = "high"
	case impact.LinesChanged > 10 || impact.FilesAffected > 1:
		impact.RiskLevel = "medium"
	default:
		impact.RiskLevel = "low"
	}
	return impact
}

func collectEdits(fix *pattern.QuickFix) []pattern.TextEdit {
	var edits []pattern.TextEdit
	for _, fileEdits := range fix.Edit.Changes {
		edits = append(edits, fileEdits...)
	}
	return edits
}

func sortReverseDocumentOrder(edits []pattern.TextEdit) {
	for i := 1; i < len(edits); i++ {
		j := i
		for j > 0 && before(edits[j-1].Range.Start, edits[j].Range.Start) {
			edits[j-1], edits[j] = edits[j], edits[j-1]
			j--
		}
	}
}

func before(a, b pattern.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}

// applyEdit splices one edit into content, skipping edits that are already
// satisfied: a replace/insert whose target already equals NewText, or a
// delete whose target range is already empty.
func applyEdit(content string, edit pattern.TextEdit) string {
	lines := splitLines(content)
	start, ok1 := offsetOf(lines, edit.Range.Start)
	end, ok2 := offsetOf(lines, edit.Range.End)
	if !ok1 || !ok2 || start > end {
		return content
	}

	current := content[start:end]
	if edit.NewText == "" {
		if current == "" {
			return content // already deleted
		}
	} else if current == edit.NewText {
		return content // already applied
	}

	return content[:start] + edit.NewText + content[end:]
}

func rangeEmpty(r pattern.Range) bool {
	return r.Start == r.End
}

// splitLines splits content into lines without their trailing newlines.
func splitLines(content string) []string {
	return strings.Split(content, "\n")
}

// offsetOf converts a 0-indexed position into a byte offset. Characters
// past the end of a line clamp to the line end.
func offsetOf(lines []string, pos pattern.Position) (int, bool) {
	if pos.Line < 0 || pos.Line >= len(lines) {
		return 0, false
	}
	offset := 0
	for i := 0; i < pos.Line; i++ {
		offset += len(lines[i]) + 1 // +1 for the newline
	}
	ch := pos.Character
	if ch < 0 {
		ch = 0
	}
	if ch > len(lines[pos.Line]) {
		ch = len(lines[pos.Line])
	}
	return offset + ch, true
}
