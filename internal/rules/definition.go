package rules

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mattepiu/drift/internal/pattern"
)

// PatternDefinition is the matcher-facing shape of a pattern: the
// detector union flattened into matcher-specific sub-config plus
// identifying metadata.
type PatternDefinition struct {
	ID         string
	Name       string
	Category   pattern.Category
	Type       pattern.DetectorType
	AST        *pattern.ASTDetector
	Regex      *pattern.RegexDetector
	Semantic   *pattern.SemanticDetector
	Structural *pattern.StructuralDetector
	Custom     *pattern.CustomDetector
	Confidence float64
	Metadata   map[string]any
}

// definitionCache memoizes detector translation. Entries are keyed by
// pattern id plus lastSeen so an updated pattern is re-translated.
type definitionCache struct {
	cache *lru.Cache[string, *PatternDefinition]
}

func newDefinitionCache(size int) *definitionCache {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, *PatternDefinition](size)
	return &definitionCache{cache: c}
}

func (dc *definitionCache) get(p *pattern.Pattern) (*PatternDefinition, error) {
	key := fmt.Sprintf("%s|%d", p.ID, p.LastSeen.UnixNano())
	if def, ok := dc.cache.Get(key); ok {
		return def, nil
	}
	def, err := buildDefinition(p)
	if err != nil {
		return nil, err
	}
	dc.cache.Add(key, def)
	return def, nil
}

func (dc *definitionCache) purge() {
	dc.cache.Purge()
}

// buildDefinition translates a pattern's detector union into the
// matcher-facing definition.
func buildDefinition(p *pattern.Pattern) (*PatternDefinition, error) {
	if err := p.Detector.Validate(); err != nil {
		return nil, fmt.Errorf("pattern %s: %w", p.ID, err)
	}
	return &PatternDefinition{
		ID:         p.ID,
		Name:       p.Name,
		Category:   p.Category,
		Type:       p.Detector.Type,
		AST:        p.Detector.AST,
		Regex:      p.Detector.Regex,
		Semantic:   p.Detector.Semantic,
		Structural: p.Detector.Structural,
		Custom:     p.Detector.Custom,
		Confidence: p.Confidence,
		Metadata:   p.Metadata,
	}, nil
}
