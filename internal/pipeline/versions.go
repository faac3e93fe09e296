package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/artifacts"
	"git.home.luguber.info/inful/docpipe/internal/configpatch"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/runner"
	"git.home.luguber.info/inful/docpipe/internal/versioning"
)

// Generator project entries recreated by every build.
var resetDirs = []string{"docs", "versioned_docs", "versioned_sidebars"}

const versionsFile = "versions.json"

// DiscoverVersions lists the staged version directories under downloadDir in
// snapshot order, with currentTag last. Tags sharing a snapshot label with a
// higher tag are returned as dropped.
func DiscoverVersions(downloadDir, currentTag string) (kept, dropped []versioning.Tag, err error) {
	entries, err := os.ReadDir(downloadDir)
	if err != nil {
		return nil, nil, errors.WrapError(err, errors.CategoryNotFound, "download directory not readable").
			WithContext("dir", downloadDir).Build()
	}
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := os.Stat(filepath.Join(downloadDir, e.Name()))
		if err != nil || !info.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	kept, dropped = versioning.Dedupe(versioning.Order(names, currentTag))
	return kept, dropped, nil
}

func (r *run) stageDiscover(_ context.Context, bs *BuildState) error {
	kept, dropped, err := DiscoverVersions(r.cfg.Paths.DownloadDir, r.cfg.Versions.CurrentTag)
	if err != nil {
		return err
	}
	for _, t := range dropped {
		r.logger.Warn("Skipping version shadowed by a newer tag", logfields.Tag(t.Name), logfields.Label(t.SnapshotLabel()))
	}
	if len(kept) == 0 {
		return errors.ValidationError("no staged versions to build").
			WithContext("dir", r.cfg.Paths.DownloadDir).UserAction().Build()
	}
	bs.Versions = kept
	bs.Report.Versions = versioning.Names(kept)
	bs.Report.Dropped = versioning.Names(dropped)
	r.logger.Info("Discovered versions", logfields.Count(len(kept)), slog.Any("versions", bs.Report.Versions))
	return nil
}

func (r *run) stageReset(_ context.Context, _ *BuildState) error {
	project := r.cfg.Paths.ProjectDir
	for _, name := range resetDirs {
		if err := os.RemoveAll(filepath.Join(project, name)); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to reset generator project").
				WithContext("path", name).Build()
		}
	}
	path := filepath.Join(project, versionsFile)
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to reset versions list").
			WithContext("path", path).Build()
	}
	return nil
}

func (r *run) stageVersions(ctx context.Context, bs *BuildState) error {
	for _, tag := range bs.Versions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.buildVersion(ctx, tag); err != nil {
			return err
		}
	}
	return nil
}

// buildVersion merges, compiles and snapshots one staged version.
func (r *run) buildVersion(ctx context.Context, tag versioning.Tag) error {
	tagDir := filepath.Join(r.cfg.Paths.DownloadDir, tag.Name)
	logger := r.logger.With(logfields.Tag(tag.Name))

	merged, err := r.merger.Merge(ctx, tagDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := r.merger.Cleanup(tagDir); err != nil {
			logger.Warn("Failed to remove merged tree", logfields.Error(err))
		}
	}()

	if _, err := r.compiler.Compile(ctx, merged.Root, tag.Name); err != nil {
		return err
	}

	for _, app := range r.cfg.Generator.APIApps {
		if !slices.Contains(merged.Apps, app) {
			logger.Debug("No fragments for API app, skipping API docs", logfields.App(app))
			continue
		}
		if err := r.sidebars.Generate(ctx, app); err != nil {
			return err
		}
	}

	label := tag.SnapshotLabel()
	cmd := runner.New(r.cfg.Generator.PackageManager, "run", "docusaurus", "docs:version", label).
		In(r.cfg.Paths.ProjectDir).
		WithTimeout(r.cfg.Generator.CommandTimeout.Std()).
		WithIdleTimeout(r.cfg.Generator.IdleTimeout.Std())
	if _, err := r.commands.Run(ctx, cmd); err != nil {
		return err
	}
	logger.Info("Version snapshot created", logfields.Label(label))
	return nil
}

// stageSite runs the final build with the generator config patched, then
// writes the artifacts whether or not the build succeeded.
func (r *run) stageSite(ctx context.Context, bs *BuildState) error {
	project := r.cfg.Paths.ProjectDir
	if err := os.MkdirAll(r.siteDir(), 0o755); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create build directory").Build()
	}

	patch := configpatch.Patch{
		Path: r.cfg.ConfigPath(),
		From: r.cfg.Generator.PatchFrom,
		To:   r.cfg.Generator.PatchTo,
	}
	timeout := r.cfg.Generator.BuildTimeout.Std()
	cmd := runner.New(r.cfg.Generator.PackageManager, "run", "build").
		In(project).
		WithTimeout(timeout).
		WithIdleTimeout(timeout)

	buildErr := configpatch.With(patch, r.logger, func() error {
		out, err := r.commands.Run(ctx, cmd)
		bs.SiteOutput = out
		return err
	})

	set := artifacts.Set{Release: r.cfg.Release}
	if bs.SiteOutput != nil {
		set.Stdout = bs.SiteOutput.Stdout
		set.Stderr = bs.SiteOutput.Stderr
	}
	written, err := artifacts.Write(project, set)
	bs.Report.Artifacts = written
	if err != nil {
		r.logger.Warn("Failed to write build artifacts", logfields.Error(err))
	}
	return buildErr
}

// stagePublish publishes the last snapshot: the current tag when configured,
// otherwise the highest version.
func (r *run) stagePublish(ctx context.Context, bs *BuildState) error {
	tag := bs.Versions[len(bs.Versions)-1]
	res, err := r.publisher.Publish(ctx, r.siteDir(), tag.PublishLabel())
	if err != nil {
		return err
	}
	bs.Report.Published = res
	return nil
}
