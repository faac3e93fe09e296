// Package helpers builds git fixtures for tests that clone or push.
package helpers

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RequireGit skips the test when no git binary is available; go-git's file
// transport shells out to git-upload-pack and git-receive-pack.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// SeedRepo creates a non-bare repository on branch with one commit holding files.
func SeedRepo(t *testing.T, branch string, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	if err != nil {
		t.Fatalf("failed to initialize git repo: %v", err)
	}
	CommitFiles(t, repo, dir, files, "seed")
	return dir
}

// BareRepo creates a bare repository cloned from seed, suitable as a push target.
func BareRepo(t *testing.T, seed string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "origin.git")
	if _, err := git.PlainClone(dir, true, &git.CloneOptions{URL: seed}); err != nil {
		t.Fatalf("failed to create bare repo: %v", err)
	}
	return dir
}

// CommitFiles writes files into the worktree at dir and commits them.
func CommitFiles(t *testing.T, repo *git.Repository, dir string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(filepath.ToSlash(name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

// HeadCommit returns the commit a branch points to in the repository at dir.
func HeadCommit(t *testing.T, dir, branch string) *object.Commit {
	t.Helper()

	repo, err := git.PlainOpen(dir)
	if err != nil {
		t.Fatalf("open %s: %v", dir, err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		t.Fatalf("resolve %s: %v", branch, err)
	}
	commit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		t.Fatalf("commit object: %v", err)
	}
	return commit
}
