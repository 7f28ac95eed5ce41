package validate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattepiu/drift/schemas"
)

const validVariantsIndex = `{
	"version": "1.0.0",
	"lastUpdated": "2026-01-01T00:00:00Z",
	"variants": [
		{
			"id": "var_a1b2c3d4",
			"patternId": "pat_11111111",
			"name": "legacy API call style",
			"scope": "file",
			"scopeValue": "src/legacy/api.ts",
			"locations": [{"file": "src/legacy/api.ts", "line": 10, "column": 3}],
			"active": true
		}
	]
}`

func TestBytesAcceptsValidDocument(t *testing.T) {
	if err := Bytes([]byte(validVariantsIndex), schemas.VariantsIndex, "index.json"); err != nil {
		t.Errorf("valid document rejected: %v", err)
	}
}

func TestBytesReportsStructuredIssues(t *testing.T) {
	bad := `{"version": "1.0.0", "variants": [{"id": "var_x"}]}`
	err := Bytes([]byte(bad), schemas.VariantsIndex, "index.json")
	if err == nil {
		t.Fatal("invalid document accepted")
	}
	var sve *SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("error type = %T, want *SchemaValidationError", err)
	}
	if len(sve.Issues) == 0 {
		t.Fatal("no issues collected")
	}
	if !strings.Contains(sve.Error(), "index.json") {
		t.Errorf("error message missing source: %s", sve.Error())
	}
}

func TestJSONCStripsComments(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.jsonc")
	content := `{
		// escalate noisy hints
		"severity": {
			"default": "warning",
			"escalationEnabled": true,
		},
		"maxBackups": 5,
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := JSONC(path, schemas.Config); err != nil {
		t.Errorf("JSONC: %v", err)
	}
}

func TestJSONMissingFile(t *testing.T) {
	if err := JSON("/nonexistent/file.json", schemas.Config); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBytesMalformedJSON(t *testing.T) {
	err := Bytes([]byte("{nope"), schemas.Config, "config.json")
	if err == nil {
		t.Fatal("malformed JSON accepted")
	}
	var sve *SchemaValidationError
	if errors.As(err, &sve) {
		t.Error("malformed JSON should be a decode error, not a schema error")
	}
}
