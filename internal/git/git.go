package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

// Remote identifies a repository and branch to clone.
type Remote struct {
	URL    string
	Branch string
	Token  string
	// Depth limits history; 0 clones everything.
	Depth int
}

// Author signs commits.
type Author struct {
	Name  string
	Email string
}

// Client performs git operations.
type Client struct {
	logger   *slog.Logger
	progress io.Writer
}

// NewClient creates a client. A nil progress writer silences transfer progress.
func NewClient(logger *slog.Logger, progress io.Writer) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{logger: logger, progress: progress}
}

// TokenAuth returns HTTP basic auth for a GitHub token, or nil without one.
func TokenAuth(token string) transport.AuthMethod {
	if token == "" {
		return nil
	}
	return &http.BasicAuth{
		Username: "token", // GitHub/GitLab use "token" as username
		Password: token,
	}
}

// Clone clones remote into dest, replacing anything already there.
func (c *Client) Clone(ctx context.Context, remote Remote, dest string) (*git.Repository, error) {
	c.logger.Debug("Cloning repository", logfields.URL(redact(remote.URL)), logfields.Branch(remote.Branch), logfields.Path(dest))
	if err := os.RemoveAll(dest); err != nil {
		return nil, fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{
		URL:   remote.URL,
		Auth:  TokenAuth(remote.Token),
		Depth: remote.Depth,
		Tags:  git.NoTags,
	}
	if c.progress != nil {
		opts.Progress = c.progress
	}
	if remote.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(remote.Branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return nil, ClassifyGitError(err, "clone", remote.URL)
	}
	if ref, herr := repo.Head(); herr == nil {
		c.logger.Info("Repository cloned", logfields.URL(redact(remote.URL)), slog.String("commit", ref.Hash().String()[:8]), logfields.Path(dest))
	}
	return repo, nil
}

// CommitAll stages every change under the worktree and commits it.
// It returns plumbing.ZeroHash and no error when there is nothing to commit.
func (c *Client) CommitAll(repo *git.Repository, message string, author Author, when time.Time) (plumbing.Hash, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, ClassifyGitError(err, "worktree", "")
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return plumbing.ZeroHash, ClassifyGitError(err, "add", "")
	}
	status, err := wt.Status()
	if err != nil {
		return plumbing.ZeroHash, ClassifyGitError(err, "status", "")
	}
	if status.IsClean() {
		c.logger.Info("Nothing to commit")
		return plumbing.ZeroHash, nil
	}

	sig := &object.Signature{Name: author.Name, Email: author.Email, When: when}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return plumbing.ZeroHash, ClassifyGitError(err, "commit", "")
	}
	c.logger.Info("Committed changes", slog.String("commit", hash.String()[:8]), slog.String("message", message))
	return hash, nil
}

// Push pushes branch to origin.
func (c *Client) Push(ctx context.Context, repo *git.Repository, branch, token string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	opts := &git.PushOptions{
		RemoteName: "origin",
		Auth:       TokenAuth(token),
		RefSpecs:   []ggitcfg.RefSpec{ggitcfg.RefSpec(ref.String() + ":" + ref.String())},
	}
	if c.progress != nil {
		opts.Progress = c.progress
	}

	url := ""
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		url = remote.Config().URLs[0]
	}
	if err := repo.PushContext(ctx, opts); err != nil {
		if stderrors.Is(err, git.NoErrAlreadyUpToDate) {
			c.logger.Info("Remote already up to date", logfields.Branch(branch))
			return nil
		}
		return ClassifyGitError(err, "push", url)
	}
	c.logger.Info("Pushed branch", logfields.Branch(branch), logfields.URL(redact(url)))
	return nil
}
