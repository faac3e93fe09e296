package git

import (
	"strings"

	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
)

// ClassifyGitError translates go-git errors into ClassifiedErrors.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := errors.AsClassified(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	category := errors.CategoryGit
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "not authorized") || strings.Contains(l, "invalid credentials"):
		category = errors.CategoryAuth
	case strings.Contains(l, "repository not found") || strings.Contains(l, "couldn't find remote ref") || strings.Contains(l, "does not exist"):
		category = errors.CategoryNotFound
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") || strings.Contains(l, "timeout") || strings.Contains(l, "no route to host"):
		category = errors.CategoryNetwork
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		category = errors.CategoryConfig
	}

	builder := errors.WrapError(err, category, "git "+op+" failed").
		WithContext("op", op).
		WithContext("url", redact(url))
	if category == errors.CategoryAuth {
		builder.UserAction()
	}
	return builder.Build()
}

// redact strips userinfo so tokens embedded in URLs never reach logs.
func redact(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://" + rest[at+1:]
	}
	return url
}
