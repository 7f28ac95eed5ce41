// Package variant owns deliberate-deviation records and answers whether
// a violation location is covered by a declared exception.
package variant

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattepiu/drift/internal/fsutil"
	"github.com/mattepiu/drift/internal/pattern"
)

// Scope restricts where a variant applies.
type Scope string

const (
	ScopeGlobal    Scope = "global"
	ScopeDirectory Scope = "directory"
	ScopeFile      Scope = "file"
)

// PatternVariant is a declared, scoped exception to a pattern. A
// variant with exactly one location is an anchor covering its entire
// scope; one with multiple locations covers only those exact locations.
type PatternVariant struct {
	ID          string             `json:"id"`
	PatternID   string             `json:"patternId"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	Scope       Scope              `json:"scope"`
	ScopeValue  string             `json:"scopeValue,omitempty"`
	Locations   []pattern.Location `json:"locations"`
	Active      bool               `json:"active"`
	CreatedAt   time.Time          `json:"createdAt,omitempty"`
	CreatedBy   string             `json:"createdBy,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy.
func (v *PatternVariant) Clone() *PatternVariant {
	cp := *v
	cp.Locations = append([]pattern.Location(nil), v.Locations...)
	return &cp
}

// validate enforces the creation-time invariants.
func (v *PatternVariant) validate() error {
	if v.PatternID == "" {
		return &InvalidVariantInputError{Field: "patternId", Reason: "required"}
	}
	if v.Name == "" {
		return &InvalidVariantInputError{Field: "name", Reason: "required"}
	}
	switch v.Scope {
	case ScopeGlobal:
		// scopeValue is meaningless for global variants but tolerated.
	case ScopeDirectory, ScopeFile:
		if v.ScopeValue == "" {
			return &InvalidVariantInputError{Field: "scopeValue", Reason: fmt.Sprintf("required for scope %q", v.Scope)}
		}
	default:
		return &InvalidVariantInputError{Field: "scope", Reason: fmt.Sprintf("unknown scope %q", v.Scope)}
	}
	if len(v.Locations) == 0 {
		return &InvalidVariantInputError{Field: "locations", Reason: "at least one location is required"}
	}
	return nil
}

// inScope reports whether a file falls inside the variant's scope. A
// file scopeValue containing glob metacharacters matches as a glob.
func (v *PatternVariant) inScope(file string) bool {
	switch v.Scope {
	case ScopeGlobal:
		return true
	case ScopeDirectory:
		return file == v.ScopeValue || strings.HasPrefix(file, strings.TrimSuffix(v.ScopeValue, "/")+"/")
	case ScopeFile:
		if strings.ContainsAny(v.ScopeValue, "*?[{") {
			return fsutil.MatchesAny([]string{v.ScopeValue}, file)
		}
		return file == v.ScopeValue
	}
	return false
}

// Covers implements anchor semantics: a single declared location covers
// the whole scope; multiple locations must match the queried location
// exactly by file, line, and column.
func (v *PatternVariant) Covers(loc pattern.Location) bool {
	if !v.inScope(loc.File) {
		return false
	}
	if len(v.Locations) == 1 {
		return true
	}
	for _, own := range v.Locations {
		if own.File == loc.File && own.Line == loc.Line && own.Column == loc.Column {
			return true
		}
	}
	return false
}

// VariantNotFoundError reports an unknown variant id.
type VariantNotFoundError struct {
	ID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant not found: %s", e.ID)
}

// InvalidVariantInputError reports a creation-time validation failure
// and names the offending field.
type InvalidVariantInputError struct {
	Field  string
	Reason string
}

func (e *InvalidVariantInputError) Error() string {
	return fmt.Sprintf("invalid variant input: field %q %s", e.Field, e.Reason)
}

// VariantManagerError wraps persistence failures.
type VariantManagerError struct {
	Op  string
	Err error
}

func (e *VariantManagerError) Error() string {
	return fmt.Sprintf("variant manager %s: %v", e.Op, e.Err)
}

func (e *VariantManagerError) Unwrap() error { return e.Err }
