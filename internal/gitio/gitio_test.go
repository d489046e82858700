package gitio

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("initializing repo: %v", err)
	}
	return dir, repo
}

func writeFile(t *testing.T, dir, relPath, content string) {
	t.Helper()
	fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("creating dir for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", relPath, err)
	}
}

func commitAll(t *testing.T, repo *git.Repository, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("getting worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("staging all: %v", err)
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("committing: %v", err)
	}
	return hash
}

func TestOpenNotARepository(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error for non-repository directory")
	}
}

func TestResolveRef(t *testing.T) {
	dir, repo := initRepo(t)
	writeFile(t, dir, "a.md", "one\n")
	hash := commitAll(t, repo, "initial")
	branchRef := plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)
	if err := repo.Storer.SetReference(branchRef); err != nil {
		t.Fatalf("creating branch: %v", err)
	}
	if _, err := repo.CreateTag("v1", hash, nil); err != nil {
		t.Fatalf("creating tag: %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}

	for _, ref := range []string{"main", "v1", hash.String()} {
		commit, err := r.ResolveRef(ref)
		if err != nil {
			t.Fatalf("resolving %q: %v", ref, err)
		}
		if commit.Hash != hash {
			t.Errorf("ref %q resolved to %s, want %s", ref, commit.Hash, hash)
		}
	}

	if _, err := r.ResolveRef("no-such-ref"); err == nil {
		t.Error("expected error for unresolvable ref")
	}
}

func TestDiffPathsIncludesBothSidesOfRename(t *testing.T) {
	dir, repo := initRepo(t)
	content := "stable content so rename detection can match the blobs\n"
	writeFile(t, dir, "old/name.md", content)
	base := commitAll(t, repo, "base")

	if err := os.RemoveAll(filepath.Join(dir, "old")); err != nil {
		t.Fatalf("removing old dir: %v", err)
	}
	writeFile(t, dir, "new/name.md", content)
	head := commitAll(t, repo, "rename")

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	baseCommit, err := r.ResolveRef(base.String())
	if err != nil {
		t.Fatalf("resolving base: %v", err)
	}
	headCommit, err := r.ResolveRef(head.String())
	if err != nil {
		t.Fatalf("resolving head: %v", err)
	}

	paths, err := r.DiffPaths(context.Background(), baseCommit, headCommit)
	if err != nil {
		t.Fatalf("diffing: %v", err)
	}
	want := []string{"new/name.md", "old/name.md"}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("diff paths = %v, want %v", paths, want)
	}
}

func TestStagedRenameContributesOriginPath(t *testing.T) {
	dir, repo := initRepo(t)
	writeFile(t, dir, "first.md", "renamed later\n")
	commitAll(t, repo, "initial")

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("getting worktree: %v", err)
	}
	if err := os.Rename(filepath.Join(dir, "first.md"), filepath.Join(dir, "second.md")); err != nil {
		t.Fatalf("renaming: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("staging: %v", err)
	}

	r, err := Open(dir)
	if err != nil {
		t.Fatalf("opening: %v", err)
	}
	paths, err := r.StagedPaths()
	if err != nil {
		t.Fatalf("collecting staged paths: %v", err)
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		seen[p] = true
	}
	if !seen["second.md"] {
		t.Errorf("new path missing from staged set: %v", paths)
	}
	if !seen["first.md"] {
		t.Errorf("origin path missing from staged set: %v", paths)
	}
}
