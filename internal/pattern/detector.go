package pattern

import "fmt"

// DetectorType identifies the matching technique a pattern's detector uses.
type DetectorType string

const (
	DetectorAST        DetectorType = "ast"
	DetectorRegex      DetectorType = "regex"
	DetectorSemantic   DetectorType = "semantic"
	DetectorStructural DetectorType = "structural"
	DetectorCustom     DetectorType = "custom"
)

// Detector is the tagged detector configuration carried by a pattern.
// Exactly the sub-config matching Type is populated; the rest are nil.
type Detector struct {
	Type       DetectorType        `json:"type"`
	AST        *ASTDetector        `json:"ast,omitempty"`
	Regex      *RegexDetector      `json:"regex,omitempty"`
	Semantic   *SemanticDetector   `json:"semantic,omitempty"`
	Structural *StructuralDetector `json:"structural,omitempty"`
	Custom     *CustomDetector     `json:"custom,omitempty"`
}

// ASTDetector matches against parsed syntax trees.
type ASTDetector struct {
	Query     string   `json:"query"`
	NodeKinds []string `json:"nodeKinds,omitempty"`
}

// RegexDetector matches raw file content.
type RegexDetector struct {
	Pattern   string `json:"pattern"`
	Flags     string `json:"flags,omitempty"`
	Multiline bool   `json:"multiline,omitempty"`
}

// SemanticDetector matches by concept similarity.
type SemanticDetector struct {
	Concept   string  `json:"concept"`
	Threshold float64 `json:"threshold,omitempty"`
}

// StructuralDetector matches shape properties (nesting, ordering, naming).
type StructuralDetector struct {
	Kind       string         `json:"kind"`
	Properties map[string]any `json:"properties,omitempty"`
}

// CustomDetector delegates to a named external matcher plugin.
type CustomDetector struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`
}

// Validate checks that the detector type is known and that the sub-config
// matching the type is present.
func (d Detector) Validate() error {
	switch d.Type {
	case DetectorAST:
		if d.AST == nil {
			return fmt.Errorf("detector type %q requires ast config", d.Type)
		}
	case DetectorRegex:
		if d.Regex == nil {
			return fmt.Errorf("detector type %q requires regex config", d.Type)
		}
	case DetectorSemantic:
		if d.Semantic == nil {
			return fmt.Errorf("detector type %q requires semantic config", d.Type)
		}
	case DetectorStructural:
		if d.Structural == nil {
			return fmt.Errorf("detector type %q requires structural config", d.Type)
		}
	case DetectorCustom:
		if d.Custom == nil {
			return fmt.Errorf("detector type %q requires custom config", d.Type)
		}
	default:
		return fmt.Errorf("unknown detector type %q", d.Type)
	}
	return nil
}
