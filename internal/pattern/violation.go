package pattern

import "time"

// Position is a 0-indexed line/character offset into a file. Violation
// ranges are 0-indexed (editor convention), unlike pattern Locations which
// are 1-indexed.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p strictly precedes other in document order.
func (p Position) Before(other Position) bool {
	if p.Line != other.Line {
		return p.Line < other.Line
	}
	return p.Character < other.Character
}

// Range is a half-open [start, end) span in a file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// TextEdit replaces the text in Range with NewText. An empty NewText is a
// deletion.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// WorkspaceEdit maps file paths to the edits to apply in each file.
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes"`
}

// FixType is the closed set of quick-fix strategies.
type FixType string

const (
	FixReplace FixType = "replace"
	FixWrap    FixType = "wrap"
	FixExtract FixType = "extract"
	FixImport  FixType = "import"
	FixRename  FixType = "rename"
	FixMove    FixType = "move"
	FixDelete  FixType = "delete"
)

// AllFixTypes returns every fix strategy, in dispatch order.
func AllFixTypes() []FixType {
	return []FixType{FixReplace, FixWrap, FixExtract, FixImport, FixRename, FixMove, FixDelete}
}

// QuickFix is a generated, previewable code transformation addressing one
// violation.
type QuickFix struct {
	Title       string        `json:"title"`
	Kind        FixType       `json:"kind"`
	Edit        WorkspaceEdit `json:"edit"`
	IsPreferred bool          `json:"isPreferred"`
	Confidence  float64       `json:"confidence"`
	Preview     string        `json:"preview,omitempty"`
}

// Violation is a concrete, located deviation from a pattern, derived at
// evaluation time. Occurrences and FirstSeen are keyed by
// (patternId, file, range.start) and accumulate across evaluation calls
// within a process lifetime.
type Violation struct {
	ID        string   `json:"id"`
	PatternID string   `json:"patternId"`
	Severity  Severity `json:"severity"`
	File      string   `json:"file"`
	Range     Range    `json:"range"`

	Message     string `json:"message"`
	Expected    string `json:"expected"`
	Actual      string `json:"actual"`
	Explanation string `json:"explanation,omitempty"`

	Occurrences int       `json:"occurrences"`
	FirstSeen   time.Time `json:"firstSeen"`

	AIExplainAvailable bool      `json:"aiExplainAvailable"`
	AIFixAvailable     bool      `json:"aiFixAvailable"`
	QuickFix           *QuickFix `json:"quickFix,omitempty"`
}

// Anchor returns the 1-indexed location of the violation's start, used when
// checking variant coverage against pattern-style locations.
func (v *Violation) Anchor() Location {
	return Location{
		File:   v.File,
		Line:   v.Range.Start.Line + 1,
		Column: v.Range.Start.Character + 1,
	}
}
