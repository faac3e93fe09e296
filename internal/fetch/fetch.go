package fetch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/fsutil"
	"git.home.luguber.info/inful/docpipe/internal/git"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/workspace"
)

// Staged tree entries kept from a branch clone besides <app>/doc.
var stagedRoots = map[string]bool{"doc": true, "src": true, "_generated": true, "_generatedDoc": true}

// Result describes one staged source.
type Result struct {
	Label string
	Dir   string
	Files int
}

// Fetcher stages documentation sources.
type Fetcher struct {
	source config.SourceConfig
	paths  config.Paths
	logger *slog.Logger
	limit  rate.Limit
	git    *git.Client
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(f *Fetcher) { f.logger = l } }

// WithRateLimit overrides the GitHub request rate.
func WithRateLimit(l rate.Limit) Option { return func(f *Fetcher) { f.limit = l } }

// New creates a fetcher for source staging into paths.DownloadDir.
func New(source config.SourceConfig, paths config.Paths, opts ...Option) *Fetcher {
	f := &Fetcher{source: source, paths: paths, logger: slog.Default()}
	for _, o := range opts {
		o(f)
	}
	f.git = git.NewClient(f.logger, nil)
	return f
}

// List returns the releases carrying the documentation asset, newest first.
func (f *Fetcher) List(ctx context.Context) ([]Release, error) {
	client, err := NewGitHubClient(ctx, f.source.Token, f.source.APIURL, f.limit)
	if err != nil {
		return nil, err
	}
	releases, err := client.ListReleases(ctx, f.source.Owner(), f.source.Name(), f.source.AssetName)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Listed releases", logfields.Repository(f.source.Repository), logfields.Count(len(releases)))
	return releases, nil
}

// SelectRelease picks the requested tag, or the newest release when tag is empty.
func SelectRelease(releases []Release, tag string) (Release, error) {
	if len(releases) == 0 {
		return Release{}, errors.NotFoundError("no release carries the documentation asset").Build()
	}
	if tag == "" {
		return releases[0], nil
	}
	for _, r := range releases {
		if r.Tag == tag {
			return r, nil
		}
	}
	return Release{}, errors.NotFoundError("tag not found in releases").
		WithContext("tag", tag).UserAction().Build()
}

// FetchRelease downloads and unpacks the documentation asset of tag
// (newest release when empty) into <downloadRoot>/<tag>.
func (f *Fetcher) FetchRelease(ctx context.Context, tag string) (*Result, error) {
	client, err := NewGitHubClient(ctx, f.source.Token, f.source.APIURL, f.limit)
	if err != nil {
		return nil, err
	}
	owner, repo := f.source.Owner(), f.source.Name()
	releases, err := client.ListReleases(ctx, owner, repo, f.source.AssetName)
	if err != nil {
		return nil, err
	}
	release, err := SelectRelease(releases, tag)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Downloading release", logfields.Tag(release.Tag), logfields.Repository(f.source.Repository))

	scratch := workspace.NewManager(f.paths.WorkspaceDir)
	if err := scratch.Create(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create workspace").Build()
	}
	defer func() { _ = scratch.Cleanup() }()

	archive := filepath.Join(scratch.GetPath(), release.AssetName)
	out, err := os.Create(archive)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create archive file").Build()
	}
	n, err := client.DownloadAsset(ctx, owner, repo, release.AssetID, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	f.logger.Debug("Saved archive", logfields.Path(archive), slog.Int64("bytes", n))

	dir, err := f.stage(release.Tag)
	if err != nil {
		return nil, err
	}
	files, err := Extract(archive, dir)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Release staged", logfields.Tag(release.Tag), logfields.Dir(dir), logfields.Count(files))
	return &Result{Label: release.Tag, Dir: dir, Files: files}, nil
}

// FetchBranch shallow-clones branch and stages its documentation trees into
// <downloadRoot>/<label>, where label is the branch with slashes replaced.
func (f *Fetcher) FetchBranch(ctx context.Context, branch string) (*Result, error) {
	if branch == "" {
		return nil, errors.ValidationError("branch fetch requires a branch").Build()
	}
	scratch := workspace.NewManager(f.paths.WorkspaceDir)
	if err := scratch.Create(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create workspace").Build()
	}
	defer func() { _ = scratch.Cleanup() }()

	clone := filepath.Join(scratch.GetPath(), "source")
	remote := git.Remote{URL: f.source.ResolvedCloneURL(), Branch: branch, Token: f.source.Token, Depth: 1}
	if _, err := f.git.Clone(ctx, remote, clone); err != nil {
		return nil, err
	}

	label := BranchLabel(branch)
	dir, err := f.stage(label)
	if err != nil {
		return nil, err
	}
	stats, err := fsutil.CopyDir(clone, dir, fsutil.CopyOptions{Overwrite: true, Skip: skipNonDoc})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to stage branch").
			WithContext("branch", branch).Build()
	}
	f.logger.Info("Branch staged", logfields.Branch(branch), logfields.Dir(dir), logfields.Count(stats.Files))
	return &Result{Label: label, Dir: dir, Files: stats.Files}, nil
}

// FetchLocal copies src into <downloadRoot>/<label>.
func (f *Fetcher) FetchLocal(ctx context.Context, src, label string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fsutil.IsDir(src) {
		return nil, errors.NotFoundError("local documentation directory not found").
			WithContext("path", src).Build()
	}
	if label == "" {
		label = filepath.Base(filepath.Clean(src))
	}
	dir, err := f.stage(label)
	if err != nil {
		return nil, err
	}
	stats, err := fsutil.CopyDir(src, dir, fsutil.CopyOptions{Overwrite: true, Skip: func(rel string, _ fs.DirEntry) bool {
		return rel == ".git"
	}})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to stage local directory").
			WithContext("path", src).Build()
	}
	for _, loop := range stats.Loops {
		f.logger.Warn("Skipping symlinked directory that loops back", logfields.Path(filepath.Join(src, loop)))
	}
	f.logger.Info("Local directory staged", logfields.Label(label), logfields.Dir(dir), logfields.Count(stats.Files))
	return &Result{Label: label, Dir: dir, Files: stats.Files}, nil
}

// stage empties and returns <downloadRoot>/<label>.
func (f *Fetcher) stage(label string) (string, error) {
	if !validLabel(label) {
		return "", errors.ValidationError("invalid staging label").WithContext("label", label).Build()
	}
	ws := workspace.NewPersistentManager(f.paths.DownloadDir, label)
	if err := ws.Reset(); err != nil {
		return "", errors.WrapError(err, errors.CategoryFileSystem, "failed to prepare staging directory").
			WithContext("label", label).Build()
	}
	return ws.GetPath(), nil
}

// BranchLabel turns a branch name into a staging directory name.
func BranchLabel(branch string) string {
	return strings.ReplaceAll(branch, "/", "-")
}

func validLabel(label string) bool {
	return label != "" && label != "." && filepath.IsLocal(label) && !strings.ContainsAny(label, `/\`)
}

// skipNonDoc keeps doc, src, _generated and <app>/doc from a repository clone.
func skipNonDoc(rel string, d fs.DirEntry) bool {
	parts := strings.Split(rel, "/")
	switch {
	case parts[0] == ".git":
		return true
	case stagedRoots[parts[0]]:
		return false
	case len(parts) == 1:
		return !d.IsDir()
	default:
		return parts[1] != "doc"
	}
}
