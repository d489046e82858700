// Package detect orchestrates one detection run: change aggregation,
// trigger matching, affected-set resolution, and scheduling.
package detect

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"artdep/internal/changes"
	"artdep/internal/config"
	"artdep/internal/graph"
	"artdep/internal/scan"
	"artdep/internal/store"
	"artdep/internal/trigger"
)

// Engine runs detection pipelines for one repository. The loaded graph
// is passed through calls explicitly; an Engine holds no graph state of
// its own, so concurrent engines over different repositories are safe.
type Engine struct {
	repoRoot string
	cfg      *config.Config
	builder  *scan.Builder
	logger   *slog.Logger
}

// NewEngine creates an Engine rooted at repoRoot. A nil logger selects
// slog's default.
func NewEngine(repoRoot string, cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repoRoot: repoRoot,
		cfg:      cfg,
		builder:  scan.NewBuilder(cfg, nil),
		logger:   logger,
	}
}

// GraphPath returns the persisted graph file location.
func (e *Engine) GraphPath() string {
	return filepath.Join(e.repoRoot, config.Dir, store.FileName)
}

// LoadOrBuildGraph returns the cached graph, rebuilding from the corpus
// when the cache is missing, incompatible, or unreadable. Rebuild
// conditions are recoverable per the error taxonomy: they degrade to a
// full scan with a warning, never a failed run. A rebuilt graph is
// persisted before returning.
func (e *Engine) LoadOrBuildGraph(ctx context.Context) (*graph.Graph, error) {
	path := e.GraphPath()
	g, err := store.Load(path)
	if err == nil {
		return g, nil
	}

	switch {
	case os.IsNotExist(err):
		e.logger.Warn("no cached graph; performing full build", "path", path)
	default:
		// Incompatible version or unreadable document.
		e.logger.Warn("cached graph unusable; performing full build", "path", path, "error", err)
	}

	g, err = e.builder.Build(ctx, e.repoRoot)
	if err != nil {
		return nil, err
	}
	if err := store.Save(g, path); err != nil {
		return nil, err
	}
	return g, nil
}

// Run executes the full pipeline and produces exactly one Result.
// Trigger matching takes precedence: when a solution-wide pattern
// matches, the affected-set and scheduling stages are skipped entirely.
func (e *Engine) Run(ctx context.Context, opts changes.Options) (Result, *changes.ChangeSet, error) {
	cs, err := changes.Detect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}

	g, err := e.LoadOrBuildGraph(ctx)
	if err != nil {
		return nil, nil, err
	}

	if hit := trigger.NewCatalog(e.cfg.Triggers).Match(cs.Files); hit != nil {
		return &FullRefresh{
			Reason:       hit.Reason,
			TriggerFiles: hit.Files,
			AllArtifacts: g.Paths(),
		}, cs, nil
	}

	affected, chain := g.Affected(cs.Files)
	order, err := g.TopoSort(affected)
	if err != nil {
		return nil, nil, err
	}

	if chain == nil {
		chain = []graph.Hop{}
	}
	return &Incremental{
		ChangedFiles:      cs.Files,
		AffectedArtifacts: order,
		DependencyChain:   chain,
	}, cs, nil
}
