package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/versioning"
)

const (
	// DefaultTimeout bounds each GitHub API request.
	DefaultTimeout = 30 * time.Second
	// DownloadTimeout bounds an asset download.
	DownloadTimeout = 10 * time.Minute
	// ProactiveRate keeps unauthenticated and authenticated callers well below the API limits.
	ProactiveRate = 1.2
)

// Release is a GitHub release carrying the documentation asset.
type Release struct {
	Tag         string
	AssetID     int64
	AssetName   string
	DownloadURL string
	Version     versioning.Tag
}

// GitHubClient lists releases and downloads assets.
type GitHubClient struct {
	gh       *gh.Client
	limiter  *rate.Limiter
	download *http.Client
}

// NewGitHubClient creates a client. An empty token yields anonymous access;
// apiURL overrides https://api.github.com/ (GitHub Enterprise, tests).
func NewGitHubClient(ctx context.Context, token, apiURL string, limit rate.Limit) (*GitHubClient, error) {
	var tc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		tc = oauth2.NewClient(ctx, ts)
	} else {
		tc = &http.Client{}
	}
	tc.Timeout = DefaultTimeout

	client := gh.NewClient(tc)
	if apiURL != "" {
		base, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryConfig, "invalid GitHub API URL").
				WithContext("url", apiURL).Build()
		}
		client.BaseURL = base
	}
	if limit == 0 {
		limit = rate.Limit(ProactiveRate)
	}

	return &GitHubClient{
		gh:       client,
		limiter:  rate.NewLimiter(limit, 1),
		download: &http.Client{Timeout: DownloadTimeout},
	}, nil
}

// ListReleases returns the releases of owner/repo that carry assetName, newest first.
func (c *GitHubClient) ListReleases(ctx context.Context, owner, repo, assetName string) ([]Release, error) {
	byTag := make(map[string]Release)
	opts := &gh.ListOptions{PerPage: 100}
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		releases, resp, err := c.gh.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return nil, wrapGitHubError(err, "list releases", owner+"/"+repo)
		}
		for _, r := range releases {
			for _, a := range r.Assets {
				if a.GetName() != assetName {
					continue
				}
				byTag[r.GetTagName()] = Release{
					Tag:         r.GetTagName(),
					AssetID:     a.GetID(),
					AssetName:   a.GetName(),
					DownloadURL: a.GetBrowserDownloadURL(),
					Version:     versioning.NewTag(r.GetTagName()),
				}
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	out := make([]Release, 0, len(byTag))
	for _, tag := range versioning.Descending(slices.Sorted(maps.Keys(byTag))) {
		out = append(out, byTag[tag.Name])
	}
	return out, nil
}

// DownloadAsset streams the asset to w.
func (c *GitHubClient) DownloadAsset(ctx context.Context, owner, repo string, id int64, w io.Writer) (int64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit wait: %w", err)
	}
	rc, redirect, err := c.gh.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, c.download)
	if err != nil {
		return 0, wrapGitHubError(err, "download asset", owner+"/"+repo)
	}
	if rc == nil {
		return 0, errors.NetworkError("asset download returned no content").
			WithContext("url", redirect).Build()
	}
	defer func() { _ = rc.Close() }()

	n, err := io.Copy(w, rc)
	if err != nil {
		return n, errors.WrapError(err, errors.CategoryNetwork, "asset download interrupted").
			WithContext("bytes", n).Build()
	}
	return n, nil
}

func wrapGitHubError(err error, op, repo string) error {
	var rateErr *gh.RateLimitError
	if stderrors.As(err, &rateErr) {
		return errors.WrapError(err, errors.CategoryGitHub, "GitHub rate limit exceeded").
			WithContext("op", op).WithContext("reset", rateErr.Rate.Reset.Time).Build()
	}
	var ghErr *gh.ErrorResponse
	if stderrors.As(err, &ghErr) && ghErr.Response != nil {
		category := errors.CategoryGitHub
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			category = errors.CategoryAuth
		case http.StatusNotFound:
			category = errors.CategoryNotFound
		}
		return errors.WrapError(err, category, "GitHub "+op+" failed").
			WithContext("repository", repo).
			WithContext("status", ghErr.Response.StatusCode).Build()
	}
	return errors.WrapError(err, errors.CategoryNetwork, "GitHub "+op+" failed").
		WithContext("repository", repo).Build()
}
