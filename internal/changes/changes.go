// Package changes aggregates changed file paths from multiple git
// change sources into a single deduplicated ChangeSet.
package changes

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"artdep/internal/config"
	"artdep/internal/gitio"
	"artdep/internal/util"
)

// DefaultDiffTimeout bounds branch-diff resolution, which depends on
// walking git object trees.
const DefaultDiffTimeout = 30 * time.Second

// ChangeSet is the aggregated result of one change-collection run.
// Files are repository-relative slash paths, deduplicated and sorted.
type ChangeSet struct {
	Files        []string `json:"files"`
	RepoRoot     string   `json:"repo_root"`
	TargetBranch string   `json:"target_branch"`
	HeadSHA      string   `json:"head_sha"`
}

// Options configures Detect. The three collector toggles are
// independent; DefaultOptions enables all of them.
type Options struct {
	RepoPath          string
	TargetBranch      string
	IncludeStaged     bool
	IncludeUnstaged   bool
	IncludeBranchDiff bool
	DiffTimeout       time.Duration
}

// DefaultOptions returns Options with every collector enabled.
func DefaultOptions(repoPath, targetBranch string) Options {
	return Options{
		RepoPath:          repoPath,
		TargetBranch:      targetBranch,
		IncludeStaged:     true,
		IncludeUnstaged:   true,
		IncludeBranchDiff: true,
		DiffTimeout:       DefaultDiffTimeout,
	}
}

// Detect collects changed paths from the enabled sources and merges
// them. A repository that cannot be opened or a target branch that does
// not resolve is a fatal error; there is no fallback to treating
// everything as changed.
func Detect(ctx context.Context, opts Options) (*ChangeSet, error) {
	repo, err := gitio.Open(opts.RepoPath)
	if err != nil {
		return nil, err
	}
	return DetectWithRepo(ctx, repo, opts)
}

// DetectWithRepo is Detect over an already-open repository.
func DetectWithRepo(ctx context.Context, repo *gitio.Repository, opts Options) (*ChangeSet, error) {
	repoRoot, err := filepath.Abs(opts.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("resolving repo root: %w", err)
	}

	files := make(map[string]struct{})

	if opts.IncludeStaged {
		staged, err := repo.StagedPaths()
		if err != nil {
			return nil, fmt.Errorf("collecting staged changes: %w", err)
		}
		addAll(files, staged)
	}

	if opts.IncludeUnstaged {
		unstaged, err := repo.UnstagedPaths()
		if err != nil {
			return nil, fmt.Errorf("collecting unstaged changes: %w", err)
		}
		addAll(files, unstaged)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, err
	}

	if opts.IncludeBranchDiff {
		base, err := repo.ResolveRef(opts.TargetBranch)
		if err != nil {
			return nil, fmt.Errorf("resolving target branch %q: %w", opts.TargetBranch, err)
		}

		timeout := opts.DiffTimeout
		if timeout <= 0 {
			timeout = DefaultDiffTimeout
		}
		diffCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		diffed, err := repo.DiffPaths(diffCtx, base, head)
		if err != nil {
			return nil, fmt.Errorf("collecting branch diff against %s: %w", opts.TargetBranch, err)
		}
		addAll(files, diffed)
	}

	return &ChangeSet{
		Files:        sortedKeys(files),
		RepoRoot:     repoRoot,
		TargetBranch: opts.TargetBranch,
		HeadSHA:      util.ShortHash(gitio.CommitHash(head), 8),
	}, nil
}

// FilterByGlob returns a new ChangeSet restricted to files matching any
// of the given doublestar patterns.
func (cs *ChangeSet) FilterByGlob(patterns []string) *ChangeSet {
	var matched []string
	for _, f := range cs.Files {
		if matchAny(patterns, f) {
			matched = append(matched, f)
		}
	}
	return &ChangeSet{
		Files:        matched,
		RepoRoot:     cs.RepoRoot,
		TargetBranch: cs.TargetBranch,
		HeadSHA:      cs.HeadSHA,
	}
}

// IsEmpty reports whether the set contains no files.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Files) == 0
}

// matchAny reports whether path matches at least one pattern. Invalid
// patterns never match.
func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

// addAll merges paths into the set, slash-normalized. Files under the
// engine's own state directory are skipped: the graph cache and run
// ledger are rewritten by the engine itself and would otherwise show up
// as changes in every run.
func addAll(set map[string]struct{}, paths []string) {
	for _, p := range paths {
		p = filepath.ToSlash(p)
		if stateFile(p) {
			continue
		}
		set[p] = struct{}{}
	}
}

// stateFile reports whether path is an engine-managed state file. The
// config file is exempt: editing it is a user change and a trigger.
func stateFile(path string) bool {
	if !strings.HasPrefix(path, config.Dir+"/") {
		return false
	}
	return path != config.Dir+"/"+config.FileName
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
