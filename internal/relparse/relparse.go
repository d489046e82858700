// Package relparse extracts declared dependency relationships from
// artifact files. Markdown artifacts declare relationships in a YAML
// front-matter block; YAML artifacts declare them at the document root.
package relparse

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"artdep/internal/graph"
)

// Declared is one relationship declared by an artifact file.
type Declared struct {
	Target   string
	Type     graph.EdgeType
	Optional bool
}

// Parser extracts declared relationships from artifact content. The
// engine treats implementations as opaque collaborators.
type Parser interface {
	Parse(path string, content []byte) ([]Declared, error)
}

// relationshipDoc is the YAML shape carrying relationship declarations.
type relationshipDoc struct {
	Relationships []struct {
		Target   string `yaml:"target"`
		Type     string `yaml:"type"`
		Optional bool   `yaml:"optional"`
	} `yaml:"relationships"`
}

// FrontMatter parses relationship declarations from YAML front matter
// (markdown) or from the document root (yaml files).
type FrontMatter struct{}

// NewFrontMatter constructs a FrontMatter parser.
func NewFrontMatter() *FrontMatter {
	return &FrontMatter{}
}

var frontMatterDelim = []byte("---")

// Parse implements Parser. Files without a relationship block declare
// nothing; a malformed block or an invalid declaration is an error
// naming the offending file.
func (p *FrontMatter) Parse(path string, content []byte) ([]Declared, error) {
	var block []byte
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		block = content
	} else {
		block = extractFrontMatter(content)
		if block == nil {
			return nil, nil
		}
	}

	var doc relationshipDoc
	if err := yaml.Unmarshal(block, &doc); err != nil {
		return nil, fmt.Errorf("parsing relationships in %s: %w", path, err)
	}

	declared := make([]Declared, 0, len(doc.Relationships))
	for _, rel := range doc.Relationships {
		if rel.Target == "" {
			return nil, fmt.Errorf("%s: relationship with empty target", path)
		}
		typ := graph.EdgeType(rel.Type)
		if rel.Type == "" {
			typ = graph.EdgeUses
		}
		if !graph.KnownEdgeType(typ) {
			return nil, fmt.Errorf("%s: unknown relationship type %q for target %s", path, rel.Type, rel.Target)
		}
		declared = append(declared, Declared{
			Target:   rel.Target,
			Type:     typ,
			Optional: rel.Optional,
		})
	}
	return declared, nil
}

// extractFrontMatter returns the YAML between the opening and closing
// "---" lines, or nil when the file carries no front matter.
func extractFrontMatter(content []byte) []byte {
	trimmed := bytes.TrimLeft(content, "\uFEFF\r\n")
	if !bytes.HasPrefix(trimmed, frontMatterDelim) {
		return nil
	}
	rest := trimmed[len(frontMatterDelim):]
	if len(rest) == 0 || (rest[0] != '\n' && !bytes.HasPrefix(rest, []byte("\r\n"))) {
		return nil
	}

	lines := bytes.SplitAfter(rest, []byte("\n"))
	var body []byte
	for i, line := range lines {
		if i == 0 {
			continue // remainder of the opening delimiter line
		}
		if bytes.Equal(bytes.TrimRight(line, "\r\n"), frontMatterDelim) {
			return body
		}
		body = append(body, line...)
	}
	return nil // unterminated front matter
}
