// Package validate checks on-disk documents against the embedded JSON
// Schemas and reports structured, per-path issues.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mattepiu/drift/internal/jsonc"
	"github.com/mattepiu/drift/schemas"
)

// Issue is a single schema violation at a JSON path.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// SchemaValidationError aggregates every issue found in one document.
type SchemaValidationError struct {
	Source string
	Schema string
	Issues []Issue
}

func (e *SchemaValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s does not match the %s schema (%d issue", e.Source, e.Schema, len(e.Issues))
	if len(e.Issues) != 1 {
		b.WriteString("s")
	}
	b.WriteString(")")
	for _, iss := range e.Issues {
		fmt.Fprintf(&b, "\n  %s: %s", iss.Path, iss.Message)
	}
	return b.String()
}

var printer = message.NewPrinter(language.English)

// Document validates an already-decoded JSON value against a named
// schema.
func Document(instance any, schemaName, source string) error {
	schema, err := schemas.Compile(schemaName)
	if err != nil {
		return err
	}
	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("%s invalid: %w", source, err)
	}
	return &SchemaValidationError{
		Source: source,
		Schema: schemaName,
		Issues: collectIssues(ve, nil),
	}
}

// collectIssues flattens the cause tree into leaf issues.
func collectIssues(ve *jsonschema.ValidationError, acc []Issue) []Issue {
	if len(ve.Causes) == 0 {
		return append(acc, Issue{
			Path:    "/" + strings.Join(ve.InstanceLocation, "/"),
			Message: ve.ErrorKind.LocalizedString(printer),
		})
	}
	for _, c := range ve.Causes {
		acc = collectIssues(c, acc)
	}
	return acc
}

// JSON validates a JSON file against a named schema.
func JSON(path, schemaName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return Bytes(bytes.TrimSpace(data), schemaName, path)
}

// JSONC validates a JSON-with-comments file against a named schema.
func JSONC(path, schemaName string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return Bytes(jsonc.Clean(data), schemaName, path)
}

// Bytes validates raw JSON bytes against a named schema.
func Bytes(data []byte, schemaName, source string) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decode %s: %w", source, err)
	}
	return Document(instance, schemaName, source)
}
