// Package trigger matches changed files against the catalog of
// solution-wide patterns that force a full refresh.
package trigger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Catalog is an ordered list of solution-wide doublestar patterns.
type Catalog struct {
	patterns []string
}

// NewCatalog creates a catalog from the given patterns.
func NewCatalog(patterns []string) *Catalog {
	return &Catalog{patterns: patterns}
}

// Hit describes a trigger match.
type Hit struct {
	// Reason is a human-readable explanation naming the matched
	// pattern(s) and file(s).
	Reason string

	// Files are the changed files that matched, ascending.
	Files []string

	// Patterns are the catalog patterns that matched, in catalog order.
	Patterns []string
}

// Match tests every changed file against the catalog. It returns nil
// when nothing matches. A non-nil Hit forces the run to a full refresh
// upstream, regardless of the dependency graph.
func (c *Catalog) Match(changedFiles []string) *Hit {
	matchedFiles := make(map[string]struct{})
	var matchedPatterns []string

	for _, pattern := range c.patterns {
		hit := false
		for _, file := range changedFiles {
			ok, err := doublestar.Match(pattern, file)
			if err != nil {
				continue
			}
			if ok {
				matchedFiles[file] = struct{}{}
				hit = true
			}
		}
		if hit {
			matchedPatterns = append(matchedPatterns, pattern)
		}
	}

	if len(matchedFiles) == 0 {
		return nil
	}

	files := make([]string, 0, len(matchedFiles))
	for f := range matchedFiles {
		files = append(files, f)
	}
	sort.Strings(files)

	return &Hit{
		Reason: fmt.Sprintf("solution-wide trigger: %s matched by %s",
			strings.Join(matchedPatterns, ", "), strings.Join(files, ", ")),
		Files:    files,
		Patterns: matchedPatterns,
	}
}
