// Package scan builds the artifact graph from the corpus on disk.
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"artdep/internal/config"
	"artdep/internal/graph"
	"artdep/internal/relparse"
	"artdep/internal/util"
)

// DanglingReferenceError reports a mandatory relationship whose target
// artifact does not exist.
type DanglingReferenceError struct {
	Source string
	Target string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s declares a mandatory dependency on %s, which does not exist", e.Source, e.Target)
}

// Builder scans a corpus and assembles artifact graphs.
type Builder struct {
	cfg     *config.Config
	parser  relparse.Parser
	workers int
}

// NewBuilder creates a Builder. A nil parser selects the front-matter
// parser.
func NewBuilder(cfg *config.Config, parser relparse.Parser) *Builder {
	if parser == nil {
		parser = relparse.NewFrontMatter()
	}
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return &Builder{cfg: cfg, parser: parser, workers: workers}
}

// Build performs a full corpus scan under rootPath and returns a fresh
// graph. Files are parsed concurrently; the graph itself is assembled
// in a single pass after all parse results are in, so no shared maps
// are mutated concurrently. The context cancels the scan between files.
func (b *Builder) Build(ctx context.Context, rootPath string) (*graph.Graph, error) {
	candidates, err := b.enumerate(rootPath)
	if err != nil {
		return nil, err
	}

	results, err := b.parseAll(ctx, rootPath, candidates)
	if err != nil {
		return nil, err
	}

	return b.assemble(results)
}

// Update patches g in place for the given changed paths: removed files
// lose their node and every edge referencing it, changed files are
// re-parsed and their outgoing edges replaced, and files whose checksum
// is unchanged are left untouched. Incoming edges from unchanged files
// survive node replacement. A failed update leaves g exactly as it was,
// so callers can retry the same batch later.
func (b *Builder) Update(ctx context.Context, g *graph.Graph, rootPath string, changedPaths []string) error {
	paths := append([]string(nil), changedPaths...)
	sort.Strings(paths)

	// Phase one: decide per path whether to remove, re-parse, or skip.
	// Edges are validated and wired in later phases so a mandatory
	// reference to an artifact created by the same change set is not a
	// dangling error.
	var removals []string
	var reparsed []parsed

	for _, relPath := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		relPath = filepath.ToSlash(relPath)
		fullPath := filepath.Join(rootPath, filepath.FromSlash(relPath))

		info, err := os.Stat(fullPath)
		if os.IsNotExist(err) {
			removals = append(removals, relPath)
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %w", relPath, err)
		}
		if info.IsDir() {
			continue
		}

		artifactType, ok := b.classify(relPath)
		if !ok {
			// Not an artifact (anymore); drop any stale node.
			removals = append(removals, relPath)
			continue
		}

		content, err := os.ReadFile(fullPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}

		checksum := util.Blake3HashHex(content)
		if existing, found := g.Node(relPath); found && existing.Checksum == checksum {
			continue
		}

		decls, err := b.parser.Parse(relPath, content)
		if err != nil {
			return err
		}

		reparsed = append(reparsed, parsed{
			node:  &graph.Node{Path: relPath, Type: artifactType, Checksum: checksum},
			decls: decls,
		})
	}

	// Phase two: validate every declaration against the node set as it
	// will look after this batch, before touching g. Mutating first
	// would update stored checksums, and a later retry of the same
	// files would then skip them as unchanged.
	removed := make(map[string]bool, len(removals))
	for _, relPath := range removals {
		removed[relPath] = true
	}
	added := make(map[string]bool, len(reparsed))
	for _, res := range reparsed {
		added[res.node.Path] = true
	}
	willExist := func(path string) bool {
		if removed[path] {
			return false
		}
		return added[path] || g.HasNode(path)
	}

	for _, res := range reparsed {
		for _, decl := range res.decls {
			if decl.Target == res.node.Path {
				return fmt.Errorf("self-loop edge on %s", res.node.Path)
			}
			if !decl.Optional && !willExist(decl.Target) {
				return &DanglingReferenceError{Source: res.node.Path, Target: decl.Target}
			}
		}
	}

	// Phase three: apply. Nodes first, then edges.
	for _, relPath := range removals {
		g.RemoveNode(relPath)
	}
	for _, res := range reparsed {
		g.RemoveOutgoing(res.node.Path)
		g.AddNode(res.node)
	}
	for _, res := range reparsed {
		for _, decl := range res.decls {
			if err := g.AddEdge(graph.Edge{
				Source:   res.node.Path,
				Target:   decl.Target,
				Type:     decl.Type,
				Optional: decl.Optional,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// candidate is one artifact file discovered during enumeration.
type candidate struct {
	relPath      string
	fullPath     string
	artifactType graph.ArtifactType
}

// parsed is the per-file result collected from the worker pool.
type parsed struct {
	node  *graph.Node
	decls []relparse.Declared
}

// enumerate walks the configured roots and returns all artifact
// candidates sorted by path.
func (b *Builder) enumerate(rootPath string) ([]candidate, error) {
	excluded := make(map[string]bool, len(b.cfg.ExcludeDirs))
	for _, d := range b.cfg.ExcludeDirs {
		excluded[d] = true
	}

	seen := make(map[string]bool)
	var candidates []candidate

	for _, root := range b.cfg.Roots {
		scanRoot := filepath.Join(rootPath, filepath.FromSlash(root))
		info, err := os.Stat(scanRoot)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("stat root %s: %w", root, err)
		}
		if !info.IsDir() {
			continue
		}

		err = filepath.Walk(scanRoot, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if excluded[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !b.hasArtifactExt(path) {
				return nil
			}

			relPath, err := filepath.Rel(rootPath, path)
			if err != nil {
				return fmt.Errorf("getting relative path: %w", err)
			}
			relPath = filepath.ToSlash(relPath)
			if seen[relPath] {
				return nil
			}

			artifactType, ok := b.classify(relPath)
			if !ok {
				return nil
			}

			seen[relPath] = true
			candidates = append(candidates, candidate{
				relPath:      relPath,
				fullPath:     path,
				artifactType: artifactType,
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].relPath < candidates[j].relPath
	})
	return candidates, nil
}

// parseAll hashes and parses every candidate using a bounded worker
// pool. The first error cancels the remaining work.
func (b *Builder) parseAll(ctx context.Context, rootPath string, candidates []candidate) ([]parsed, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan candidate)
	results := make(chan parsed, len(candidates))
	errs := make(chan error, b.workers)

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cand := range jobs {
				res, err := b.parseOne(cand)
				if err != nil {
					errs <- err
					cancel()
					return
				}
				results <- res
			}
		}()
	}

feed:
	for _, cand := range candidates {
		select {
		case jobs <- cand:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	close(errs)

	if err := <-errs; err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := make([]parsed, 0, len(candidates))
	for res := range results {
		all = append(all, res)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].node.Path < all[j].node.Path
	})
	return all, nil
}

func (b *Builder) parseOne(cand candidate) (parsed, error) {
	content, err := os.ReadFile(cand.fullPath)
	if err != nil {
		return parsed{}, fmt.Errorf("reading %s: %w", cand.relPath, err)
	}

	decls, err := b.parser.Parse(cand.relPath, content)
	if err != nil {
		return parsed{}, err
	}

	return parsed{
		node: &graph.Node{
			Path:     cand.relPath,
			Type:     cand.artifactType,
			Checksum: util.Blake3HashHex(content),
		},
		decls: decls,
	}, nil
}

// assemble merges parse results into a graph. Nodes go in first so
// mandatory edge targets can be checked against the complete node set.
func (b *Builder) assemble(results []parsed) (*graph.Graph, error) {
	g := graph.New()
	for _, res := range results {
		g.AddNode(res.node)
	}

	for _, res := range results {
		for _, decl := range res.decls {
			if !decl.Optional && !g.HasNode(decl.Target) {
				return nil, &DanglingReferenceError{Source: res.node.Path, Target: decl.Target}
			}
			if err := g.AddEdge(graph.Edge{
				Source:   res.node.Path,
				Target:   decl.Target,
				Type:     decl.Type,
				Optional: decl.Optional,
			}); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}

func (b *Builder) hasArtifactExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range b.cfg.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// classify assigns the artifact type via the ordered type rules,
// first match wins. Paths matching no rule are not artifacts.
func (b *Builder) classify(relPath string) (graph.ArtifactType, bool) {
	for _, rule := range b.cfg.TypeRules {
		for _, pattern := range rule.Patterns {
			ok, err := doublestar.Match(pattern, relPath)
			if err != nil {
				continue
			}
			if ok {
				t := graph.ArtifactType(rule.Name)
				if !graph.KnownArtifactType(t) {
					return "", false
				}
				return t, true
			}
		}
	}
	return "", false
}
