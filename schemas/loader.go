// Package schemas embeds the JSON Schemas for the on-disk formats and
// compiles them on demand.
package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed *.schema.json
var schemaFS embed.FS

const (
	PatternFile       = "pattern-file"
	LegacyPatternFile = "legacy-pattern-file"
	VariantsIndex     = "variants-index"
	Config            = "config"
)

var allNames = []string{PatternFile, LegacyPatternFile, VariantsIndex, Config}

var (
	compileOnce sync.Once
	compiler    *jsonschema.Compiler
	compileErr  error
)

func getCompiler() (*jsonschema.Compiler, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range allNames {
			data, err := schemaFS.ReadFile(schemaPath(name))
			if err != nil {
				compileErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
			if err != nil {
				compileErr = fmt.Errorf("decode schema %s: %w", name, err)
				return
			}
			if err := c.AddResource(schemaURL(name), doc); err != nil {
				compileErr = fmt.Errorf("register schema %s: %w", name, err)
				return
			}
		}
		compiler = c
	})
	return compiler, compileErr
}

func schemaPath(name string) string {
	return fmt.Sprintf("%s.schema.json", name)
}

func schemaURL(name string) string {
	return fmt.Sprintf("mem://schemas/%s.schema.json", name)
}

// Compile returns the compiled schema for a registered name.
func Compile(name string) (*jsonschema.Schema, error) {
	c, err := getCompiler()
	if err != nil {
		return nil, err
	}
	s, err := c.Compile(schemaURL(name))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return s, nil
}

// List returns the raw bytes of every embedded schema keyed by name.
func List() (map[string][]byte, error) {
	out := make(map[string][]byte, len(allNames))
	for _, n := range allNames {
		b, err := schemaFS.ReadFile(schemaPath(n))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", n, err)
		}
		out[n] = b
	}
	return out, nil
}
