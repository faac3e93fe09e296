package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpipe/cmd/docpipe/commands"
	"git.home.luguber.info/inful/docpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/docpipe/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Name("docpipe"),
		kong.Description("Build versioned, localized Docusaurus documentation from release archives."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
		kong.Bind(global),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	parser.BindTo(ctx, (*context.Context)(nil))
	err := parser.Run(cli)
	stop()

	if err != nil {
		os.Exit(errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err))
	}
}
