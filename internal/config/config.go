// Package config loads the engine configuration from .drift/config.jsonc
// and applies defaults for anything the file leaves out.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattepiu/drift/internal/jsonc"
	"github.com/mattepiu/drift/internal/logger"
	"github.com/mattepiu/drift/internal/pattern"
	"github.com/mattepiu/drift/internal/severity"
	"github.com/mattepiu/drift/internal/validate"
	"github.com/mattepiu/drift/schemas"
)

// DataDirName is the workspace-relative directory holding all engine
// state.
const DataDirName = ".drift"

// Config mirrors the curated config.jsonc structure.
type Config struct {
	DataDir                 string            `json:"dataDir,omitempty"`
	IgnoreGlobs             []string          `json:"ignoreGlobs,omitempty"`
	MaxBackups              int               `json:"maxBackups,omitempty"`
	SaveDebounceMs          int               `json:"saveDebounceMs,omitempty"`
	MaxViolationsPerFile    int               `json:"maxViolationsPerFile,omitempty"`
	MaxViolationsPerPattern int               `json:"maxViolationsPerPattern,omitempty"`
	LogLevel                string            `json:"logLevel,omitempty"`
	Severity                SeverityConfig    `json:"severity,omitempty"`
	QuickFix                QuickFixConfig    `json:"quickFix,omitempty"`
	Metadata                map[string]string `json:"metadata,omitempty"`
}

// SeverityConfig is the severity section of config.jsonc.
type SeverityConfig struct {
	Default           string                    `json:"default,omitempty"`
	PatternOverrides  map[string]string         `json:"patternOverrides,omitempty"`
	CategoryOverrides map[string]string         `json:"categoryOverrides,omitempty"`
	EscalationEnabled bool                      `json:"escalationEnabled,omitempty"`
	EscalationRules   []severity.EscalationRule `json:"escalationRules,omitempty"`
}

// QuickFixConfig is the quickFix section of config.jsonc.
type QuickFixConfig struct {
	MinConfidence        float64 `json:"minConfidence,omitempty"`
	MaxFixesPerViolation int     `json:"maxFixesPerViolation,omitempty"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		IgnoreGlobs:             defaultIgnoreGlobs(),
		MaxBackups:              5,
		SaveDebounceMs:          1000,
		MaxViolationsPerFile:    100,
		MaxViolationsPerPattern: 50,
		LogLevel:                "off",
		Severity: SeverityConfig{
			Default: string(pattern.SeverityWarning),
		},
		QuickFix: QuickFixConfig{
			MinConfidence:        0.5,
			MaxFixesPerViolation: 5,
		},
	}
}

func defaultIgnoreGlobs() []string {
	return []string{
		".git/**",
		DataDirName + "/**",
		"node_modules/**",
		"vendor/**",
		"dist/**",
		"build/**",
		"coverage/**",
		"target/**",
		"**/*.min.*",
		"**/*.lock",
		"**/*.generated.*",
	}
}

// Load reads .drift/config.jsonc under root. A missing file yields the
// defaults; a malformed or schema-invalid file is an error.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, DataDirName, "config.jsonc")
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	cleaned := jsonc.Clean(data)
	if err := validate.Bytes(cleaned, schemas.Config, path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	var file Config
	if err := json.Unmarshal(cleaned, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.merge(&file)
	return cfg, nil
}

// merge overlays non-zero file values onto the defaults. Ignore globs
// are additive and deduplicated.
func (c *Config) merge(file *Config) {
	if file.DataDir != "" {
		c.DataDir = file.DataDir
	}
	c.IgnoreGlobs = mergeGlobs(c.IgnoreGlobs, file.IgnoreGlobs)
	if file.MaxBackups > 0 {
		c.MaxBackups = file.MaxBackups
	}
	if file.SaveDebounceMs > 0 {
		c.SaveDebounceMs = file.SaveDebounceMs
	}
	if file.MaxViolationsPerFile > 0 {
		c.MaxViolationsPerFile = file.MaxViolationsPerFile
	}
	if file.MaxViolationsPerPattern > 0 {
		c.MaxViolationsPerPattern = file.MaxViolationsPerPattern
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	if file.Severity.Default != "" {
		c.Severity.Default = file.Severity.Default
	}
	if len(file.Severity.PatternOverrides) > 0 {
		c.Severity.PatternOverrides = file.Severity.PatternOverrides
	}
	if len(file.Severity.CategoryOverrides) > 0 {
		c.Severity.CategoryOverrides = file.Severity.CategoryOverrides
	}
	c.Severity.EscalationEnabled = file.Severity.EscalationEnabled
	if len(file.Severity.EscalationRules) > 0 {
		c.Severity.EscalationRules = file.Severity.EscalationRules
	}
	if file.QuickFix.MinConfidence > 0 {
		c.QuickFix.MinConfidence = file.QuickFix.MinConfidence
	}
	if file.QuickFix.MaxFixesPerViolation > 0 {
		c.QuickFix.MaxFixesPerViolation = file.QuickFix.MaxFixesPerViolation
	}
	if len(file.Metadata) > 0 {
		c.Metadata = file.Metadata
	}
}

// SeverityManagerConfig converts the file representation into the
// runtime severity configuration. Unknown severity names fall back to
// warning.
func (c *Config) SeverityManagerConfig() severity.Config {
	out := severity.Config{
		Default:           parseSeverity(c.Severity.Default, pattern.SeverityWarning),
		PatternOverrides:  make(map[string]pattern.Severity, len(c.Severity.PatternOverrides)),
		CategoryOverrides: make(map[pattern.Category]pattern.Severity, len(c.Severity.CategoryOverrides)),
		EscalationEnabled: c.Severity.EscalationEnabled,
		EscalationRules:   c.Severity.EscalationRules,
	}
	for id, s := range c.Severity.PatternOverrides {
		out.PatternOverrides[id] = parseSeverity(s, pattern.SeverityWarning)
	}
	for cat, s := range c.Severity.CategoryOverrides {
		out.CategoryOverrides[pattern.Category(cat)] = parseSeverity(s, pattern.SeverityWarning)
	}
	if out.EscalationEnabled && len(out.EscalationRules) == 0 {
		out.EscalationRules = severity.DefaultEscalationRules()
	}
	return out
}

// LoggerLevel maps the configured log level string to a logger level.
func (c *Config) LoggerLevel() logger.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return logger.LevelDebug
	case "info":
		return logger.LevelInfo
	default:
		return logger.LevelOff
	}
}

func parseSeverity(s string, fallback pattern.Severity) pattern.Severity {
	switch pattern.Severity(s) {
	case pattern.SeverityError, pattern.SeverityWarning, pattern.SeverityInfo, pattern.SeverityHint:
		return pattern.Severity(s)
	}
	return fallback
}

func mergeGlobs(defaults, user []string) []string {
	seen := make(map[string]struct{})
	var merged []string
	appendIfMissing := func(globs []string) {
		for _, g := range globs {
			norm := normalizeGlob(g)
			if norm == "" {
				continue
			}
			if _, ok := seen[norm]; ok {
				continue
			}
			seen[norm] = struct{}{}
			merged = append(merged, norm)
		}
	}
	appendIfMissing(defaults)
	appendIfMissing(user)
	return merged
}

func normalizeGlob(g string) string {
	trimmed := strings.TrimSpace(g)
	if trimmed == "" {
		return ""
	}
	trimmed = strings.ReplaceAll(trimmed, "\\", "/")
	for strings.Contains(trimmed, "//") {
		trimmed = strings.ReplaceAll(trimmed, "//", "/")
	}
	return filepath.ToSlash(trimmed)
}
