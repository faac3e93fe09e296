package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field names shared by every package.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyTag        = "tag"
	KeyLabel      = "label"
	KeyLocale     = "locale"
	KeyApp        = "app"
	KeyPath       = "path"
	KeyTarget     = "target"
	KeyCommand    = "command"
	KeyDir        = "dir"
	KeyRepo       = "repository"
	KeyBranch     = "branch"
	KeyURL        = "url"
	KeyCount      = "count"
	KeyExitCode   = "exit_code"
	KeySubject    = "subject"
	KeyError      = "error"
)

func RunID(id string) slog.Attr         { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Tag(tag string) slog.Attr          { return slog.String(KeyTag, tag) }
func Label(label string) slog.Attr      { return slog.String(KeyLabel, label) }
func Locale(locale string) slog.Attr    { return slog.String(KeyLocale, locale) }
func App(app string) slog.Attr          { return slog.String(KeyApp, app) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Target(p string) slog.Attr         { return slog.String(KeyTarget, p) }
func Command(c string) slog.Attr        { return slog.String(KeyCommand, c) }
func Dir(d string) slog.Attr            { return slog.String(KeyDir, d) }
func Repository(r string) slog.Attr     { return slog.String(KeyRepo, r) }
func Branch(b string) slog.Attr         { return slog.String(KeyBranch, b) }
func URL(u string) slog.Attr            { return slog.String(KeyURL, u) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func ExitCode(code int) slog.Attr       { return slog.Int(KeyExitCode, code) }
func Subject(s string) slog.Attr        { return slog.String(KeySubject, s) }
func Duration(d time.Duration) slog.Attr { return slog.Int64(KeyDurationMS, d.Milliseconds()) }

// Error renders err as a string attribute; a nil error yields an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
