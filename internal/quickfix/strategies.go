package quickfix

import (
	"fmt"
	"strings"

	"github.com/mattepiu/drift/internal/pattern"
)

// baseConfidence is the fixed per-strategy score. Replace is the most
// mechanical transformation and ranks highest; Move is the most judgmental
// and ranks lowest.
var baseConfidence = map[pattern.FixType]float64{
	pattern.FixReplace: 0.9,
	pattern.FixImport:  0.85,
	pattern.FixRename:  0.8,
	pattern.FixDelete:  0.75,
	pattern.FixWrap:    0.7,
	pattern.FixExtract: 0.65,
	pattern.FixMove:    0.6,
}

// canHandle applies keyword/shape heuristics over the violation's message
// and expected/actual text to decide whether a strategy is applicable.
func canHandle(kind pattern.FixType, v *pattern.Violation) bool {
	msg := strings.ToLower(v.Message)
	switch kind {
	case pattern.FixReplace:
		return v.Expected != "" && v.Actual != "" && v.Actual != "Pattern not found"
	case pattern.FixWrap:
		return containsAny(msg, "wrap", "try/catch", "try-catch", "error handling", "unhandled", "uncaught")
	case pattern.FixExtract:
		return containsAny(msg, "extract", "too long", "too complex", "decompose", "split")
	case pattern.FixImport:
		return containsAny(msg, "import", "missing dependency") ||
			strings.HasPrefix(strings.TrimSpace(v.Expected), "import ")
	case pattern.FixRename:
		return containsAny(msg, "rename", "naming", "convention", "camelcase", "snake_case", "pascalcase")
	case pattern.FixMove:
		return containsAny(msg, "move", "belongs in", "wrong file", "wrong package", "relocate")
	case pattern.FixDelete:
		return containsAny(msg, "remove", "delete", "unused", "dead code", "redundant")
	}
	return false
}

// generate builds a quick fix for the strategy, or nil when the violation
// does not carry enough information for a concrete edit.
func generate(kind pattern.FixType, ctx *fixContext) (*pattern.QuickFix, error) {
	switch kind {
	case pattern.FixReplace:
		return generateReplace(ctx), nil
	case pattern.FixWrap:
		return generateWrap(ctx), nil
	case pattern.FixExtract:
		return generateExtract(ctx), nil
	case pattern.FixImport:
		return generateImport(ctx), nil
	case pattern.FixRename:
		return generateRename(ctx), nil
	case pattern.FixMove:
		return generateMove(ctx), nil
	case pattern.FixDelete:
		return generateDelete(ctx), nil
	}
	return nil, fmt.Errorf("unknown fix type %q", kind)
}

func generateReplace(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	edit := singleEdit(v.File, pattern.TextEdit{Range: v.Range, NewText: v.Expected})
	return &pattern.QuickFix{
		Title:      fmt.Sprintf("Replace with %q", truncate(v.Expected, 40)),
		Kind:       pattern.FixReplace,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixReplace],
		Preview:    preview(ctx.rangeText(), v.Expected),
	}
}

func generateWrap(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	inner := ctx.rangeText()
	if inner == "" {
		inner = v.Actual
	}
	if inner == "" {
		return nil
	}
	wrapped := wrapTemplate(ctx.language, inner)
	edit := singleEdit(v.File, pattern.TextEdit{Range: v.Range, NewText: wrapped})
	return &pattern.QuickFix{
		Title:      "Wrap with error handling",
		Kind:       pattern.FixWrap,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixWrap],
		Preview:    preview(inner, wrapped),
	}
}

func generateExtract(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	body := ctx.rangeText()
	if body == "" {
		return nil
	}
	name := "extracted"
	decl, call := extractTemplate(ctx.language, name, body)

	// Two edits: replace the original block with a call, and insert the new
	// declaration at file start.
	edit := pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{
		v.File: {
			{Range: v.Range, NewText: call},
			{Range: fileStartRange(), NewText: decl + "\n"},
		},
	}}
	return &pattern.QuickFix{
		Title:      "Extract into a separate function",
		Kind:       pattern.FixExtract,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixExtract],
		Preview:    preview(body, call),
	}
}

func generateImport(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	line := strings.TrimSpace(v.Expected)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "import") {
		line = importTemplate(ctx.language, line)
	}
	edit := singleEdit(v.File, pattern.TextEdit{Range: fileStartRange(), NewText: line + "\n"})
	return &pattern.QuickFix{
		Title:      fmt.Sprintf("Add import %q", truncate(line, 40)),
		Kind:       pattern.FixImport,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixImport],
		Preview:    preview("", line),
	}
}

func generateRename(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	if v.Expected == "" {
		return nil
	}
	edit := singleEdit(v.File, pattern.TextEdit{Range: v.Range, NewText: v.Expected})
	return &pattern.QuickFix{
		Title:      fmt.Sprintf("Rename to %q", truncate(v.Expected, 40)),
		Kind:       pattern.FixRename,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixRename],
		Preview:    preview(ctx.rangeText(), v.Expected),
	}
}

func generateMove(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	// A safe automated move needs a destination; without one the strategy
	// only removes the code from the wrong place.
	if v.Expected == "" {
		return nil
	}
	edit := singleEdit(v.File, pattern.TextEdit{Range: v.Range, NewText: ""})
	return &pattern.QuickFix{
		Title:      fmt.Sprintf("Move to %s", truncate(v.Expected, 60)),
		Kind:       pattern.FixMove,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixMove],
		Preview:    preview(ctx.rangeText(), ""),
	}
}

func generateDelete(ctx *fixContext) *pattern.QuickFix {
	v := ctx.violation
	edit := singleEdit(v.File, pattern.TextEdit{Range: v.Range, NewText: ""})
	return &pattern.QuickFix{
		Title:      "Remove code",
		Kind:       pattern.FixDelete,
		Edit:       edit,
		Confidence: baseConfidence[pattern.FixDelete],
		Preview:    preview(ctx.rangeText(), ""),
	}
}

// wrapTemplate returns a language-appropriate error-handling wrapper around
// the given snippet.
func wrapTemplate(lang, inner string) string {
	switch lang {
	case "go":
		return inner + "\nif err != nil {\n\treturn fmt.Errorf(\"operation failed: %w\", err)\n}"
	case "python":
		return "try:\n" + indent(inner, "    ") + "\nexcept Exception:\n    raise"
	case "rust":
		return "match " + strings.TrimSpace(inner) + " {\n    Ok(value) => value,\n    Err(e) => return Err(e),\n}"
	case "ruby":
		return "begin\n" + indent(inner, "  ") + "\nrescue StandardError => e\n  raise\nend"
	default:
		return "try {\n" + indent(inner, "  ") + "\n} catch (error) {\n  throw error;\n}"
	}
}

// extractTemplate returns a declaration and the call replacing the body.
func extractTemplate(lang, name, body string) (decl, call string) {
	switch lang {
	case "go":
		return "func " + name + "() {\n" + indent(body, "\t") + "\n}\n", name + "()"
	case "python":
		return "def " + name + "():\n" + indent(body, "    ") + "\n", name + "()"
	default:
		return "function " + name + "() {\n" + indent(body, "  ") + "\n}\n", name + "();"
	}
}

// importTemplate wraps a bare module name in the language's import syntax.
func importTemplate(lang, module string) string {
	switch lang {
	case "go":
		return fmt.Sprintf("import %q", module)
	case "python":
		return "import " + module
	default:
		return fmt.Sprintf("import %s from %q;", defaultBinding(module), module)
	}
}

func defaultBinding(module string) string {
	parts := strings.Split(module, "/")
	last := parts[len(parts)-1]
	return strings.ReplaceAll(strings.ReplaceAll(last, "-", "_"), ".", "_")
}

func singleEdit(file string, edit pattern.TextEdit) pattern.WorkspaceEdit {
	return pattern.WorkspaceEdit{Changes: map[string][]pattern.TextEdit{file: {edit}}}
}

func fileStartRange() pattern.Range {
	return pattern.Range{} // zero-width insertion at 0:0
}

func preview(before, after string) string {
	if before == "" {
		return "+ " + firstLine(after)
	}
	if after == "" {
		return "- " + firstLine(before)
	}
	return "- " + firstLine(before) + "\n+ " + firstLine(after)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		if lines[i] != "" {
			lines[i] = prefix + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
