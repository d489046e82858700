// Package config loads the engine configuration from .artdep/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the engine state directory relative to the repository root.
const Dir = ".artdep"

// FileName is the config file name inside Dir.
const FileName = "config.yaml"

// Rule maps a name to a set of doublestar glob patterns. Rule lists are
// ordered; matching is first-match-wins wherever rules are evaluated.
type Rule struct {
	Name     string   `yaml:"name"`
	Patterns []string `yaml:"patterns"`
}

// Config holds all rule catalogs for one repository.
type Config struct {
	// Roots are directories (relative to the repo root) scanned for artifacts.
	Roots []string `yaml:"roots"`

	// Extensions are artifact file extensions, including the leading dot.
	Extensions []string `yaml:"extensions"`

	// ExcludeDirs are directory names skipped during scans.
	ExcludeDirs []string `yaml:"exclude_dirs"`

	// TypeRules assign artifact types; the rule name must be a known
	// artifact type. Files matching no rule are not graph nodes.
	TypeRules []Rule `yaml:"type_rules"`

	// CategoryRules classify changed files for reporting. Evaluated in
	// order; unmatched files fall into the "other" bucket.
	CategoryRules []Rule `yaml:"category_rules"`

	// Triggers are solution-wide patterns forcing a full refresh.
	Triggers []string `yaml:"triggers"`

	// TargetBranch is the default ref for branch-diff collection.
	TargetBranch string `yaml:"target_branch"`
}

// Default returns the compiled-in configuration used when no config
// file exists yet.
func Default() *Config {
	return &Config{
		Roots:       []string{"."},
		Extensions:  []string{".md", ".yaml", ".yml"},
		ExcludeDirs: []string{".git", ".artdep", "node_modules", "vendor", "dist", "build"},
		TypeRules: []Rule{
			{Name: "framework", Patterns: []string{"framework/**", "core/**"}},
			{Name: "workflow", Patterns: []string{"workflows/**"}},
			{Name: "agent", Patterns: []string{"agents/**"}},
			{Name: "template", Patterns: []string{"templates/**"}},
			{Name: "research", Patterns: []string{"research/**"}},
		},
		CategoryRules: []Rule{
			{Name: "framework", Patterns: []string{"framework/**", "core/**"}},
			{Name: "workflow", Patterns: []string{"workflows/**"}},
			{Name: "agent", Patterns: []string{"agents/**"}},
			{Name: "template", Patterns: []string{"templates/**"}},
			{Name: "research", Patterns: []string{"research/**"}},
			{Name: "collected", Patterns: []string{"collected/**"}},
		},
		Triggers: []string{
			"core/prompts/**",
			"framework/solution.md",
			Dir + "/config.yaml",
		},
		TargetBranch: "main",
	}
}

// Path returns the config file path under repoRoot.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}

// Load reads the config file under repoRoot. A missing file is not an
// error; the compiled defaults are returned instead.
func Load(repoRoot string) (*Config, error) {
	data, err := os.ReadFile(Path(repoRoot))
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.fillDefaults()
	return &cfg, nil
}

// Write marshals cfg to the config file under repoRoot, creating the
// state directory if needed.
func (c *Config) Write(repoRoot string) error {
	dir := filepath.Join(repoRoot, Dir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s directory: %w", Dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(Path(repoRoot), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// fillDefaults backfills fields a partial config file left empty.
func (c *Config) fillDefaults() {
	def := Default()
	if len(c.Roots) == 0 {
		c.Roots = def.Roots
	}
	if len(c.Extensions) == 0 {
		c.Extensions = def.Extensions
	}
	if len(c.ExcludeDirs) == 0 {
		c.ExcludeDirs = def.ExcludeDirs
	}
	if c.TargetBranch == "" {
		c.TargetBranch = def.TargetBranch
	}
}
