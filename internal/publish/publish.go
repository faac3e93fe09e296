// Package publish pushes a built site into a documentation git repository
// under <path>/<label>.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/fsutil"
	"git.home.luguber.info/inful/docpipe/internal/git"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/workspace"
)

// Result describes a publish.
type Result struct {
	Label  string
	Target string // path inside the repository
	Commit string // empty when nothing changed
	Files  int
}

// Publisher clones the documentation repository, replaces one version
// directory and pushes.
type Publisher struct {
	cfg          config.PublishConfig
	workspaceDir string
	git          *git.Client
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a publisher. Clones live in an ephemeral directory under workspaceDir.
func New(cfg config.PublishConfig, workspaceDir string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:          cfg,
		workspaceDir: workspaceDir,
		git:          git.NewClient(logger, nil),
		logger:       logger,
		now:          time.Now,
	}
}

// Publish copies siteDir to <path>/<label> in the repository, commits
// "update <label> on <date>" and pushes the configured branch.
func (p *Publisher) Publish(ctx context.Context, siteDir, label string) (*Result, error) {
	rel := filepath.Join(p.cfg.Path, label)
	if label == "" || !filepath.IsLocal(label) || !filepath.IsLocal(rel) {
		return nil, errors.ValidationError("invalid publish target").
			WithContext("path", p.cfg.Path).WithContext("label", label).Build()
	}
	if !fsutil.IsDir(siteDir) {
		return nil, errors.NotFoundError("built site not found").WithContext("path", siteDir).Build()
	}

	ws := workspace.NewManager(p.workspaceDir)
	if err := ws.Create(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create publish workspace").Build()
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			p.logger.Warn("Failed to clean publish workspace", logfields.Error(err))
		}
	}()

	clone, err := ws.CreateSubdir("site")
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create publish workspace").Build()
	}
	repo, err := p.git.Clone(ctx, git.Remote{URL: p.cfg.Repository, Branch: p.cfg.Branch, Token: p.cfg.Token}, clone)
	if err != nil {
		return nil, err
	}

	files, err := git.ReplaceDir(repo, filepath.ToSlash(rel), siteDir)
	if err != nil {
		return nil, err
	}

	now := p.now()
	message := fmt.Sprintf("update %s on %s", label, now.Format(time.RFC3339))
	hash, err := p.git.CommitAll(repo, message, git.Author{Name: p.cfg.AuthorName, Email: p.cfg.AuthorEmail}, now)
	if err != nil {
		return nil, err
	}
	res := &Result{Label: label, Target: filepath.ToSlash(rel), Files: files}
	if hash.IsZero() {
		p.logger.Info("Published site unchanged", logfields.Label(label))
		return res, nil
	}
	if err := p.git.Push(ctx, repo, p.cfg.Branch, p.cfg.Token); err != nil {
		return nil, err
	}
	res.Commit = hash.String()
	p.logger.Info("Published site", logfields.Label(label), logfields.Target(res.Target),
		logfields.Branch(p.cfg.Branch), logfields.Count(files))
	return res, nil
}
