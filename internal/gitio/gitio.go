// Package gitio provides Git repository I/O operations using go-git.
package gitio

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
}

// Open opens an existing Git repository. A directory that is not a git
// checkout is a fatal error; there is no fallback.
func Open(repoPath string) (*Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}
	return &Repository{repo: repo, path: repoPath}, nil
}

// Path returns the repository root path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// ResolveRef resolves a git reference (branch name, tag, or commit hash)
// to a commit.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	// Try as a branch first
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(refName), true)
	if err == nil {
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("getting commit: %w", err)
		}
		return commit, nil
	}

	// Try as a tag
	ref, err = r.repo.Reference(plumbing.NewTagReferenceName(refName), true)
	if err == nil {
		commit, err := r.repo.CommitObject(ref.Hash())
		if err != nil {
			return nil, fmt.Errorf("getting commit: %w", err)
		}
		return commit, nil
	}

	// Try as a commit hash
	hash := plumbing.NewHash(refName)
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit hash", refName)
	}
	return commit, nil
}

// Head returns the commit currently checked out.
func (r *Repository) Head() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("getting HEAD commit: %w", err)
	}
	return commit, nil
}

// StagedPaths returns the paths of all files with staged changes,
// ascending. Renames staged in the index contribute both the old and
// the new path.
func (r *Repository) StagedPaths() ([]string, error) {
	status, err := r.worktreeStatus()
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for path, s := range status {
		if s.Staging == git.Unmodified || s.Staging == git.Untracked {
			continue
		}
		paths[path] = struct{}{}
		if s.Extra != "" {
			// Original path of a staged rename.
			paths[s.Extra] = struct{}{}
		}
	}
	return sortedPaths(paths), nil
}

// UnstagedPaths returns the paths of all files with working-tree
// changes, including untracked files, ascending.
func (r *Repository) UnstagedPaths() ([]string, error) {
	status, err := r.worktreeStatus()
	if err != nil {
		return nil, err
	}

	paths := make(map[string]struct{})
	for path, s := range status {
		if s.Worktree == git.Unmodified {
			continue
		}
		paths[path] = struct{}{}
	}
	return sortedPaths(paths), nil
}

// DiffPaths returns the paths of files that differ between two commits,
// ascending. Renames contribute both the old and the new path, since
// either side may carry stale or new dependency edges. The context
// bounds the diff computation.
func (r *Repository) DiffPaths(ctx context.Context, baseCommit, headCommit *object.Commit) ([]string, error) {
	baseTree, err := baseCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting base tree: %w", err)
	}

	headTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("getting head tree: %w", err)
	}

	changes, err := object.DiffTreeWithOptions(ctx, baseTree, headTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("computing diff: %w", err)
	}

	paths := make(map[string]struct{})
	for _, change := range changes {
		if change.From.Name != "" {
			paths[change.From.Name] = struct{}{}
		}
		if change.To.Name != "" {
			paths[change.To.Name] = struct{}{}
		}
	}
	return sortedPaths(paths), nil
}

func (r *Repository) worktreeStatus() (git.Status, error) {
	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("computing worktree status: %w", err)
	}
	return status, nil
}

func sortedPaths(set map[string]struct{}) []string {
	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// CommitHash returns the full hash of a commit as a string.
func CommitHash(commit *object.Commit) string {
	return commit.Hash.String()
}
