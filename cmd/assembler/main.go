package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/scriptassembler/cmd/assembler/commands"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("assembler"),
		kong.Description("Assemble compiled build units into DataMiner protocol and automation script documents."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default()}
	err := parser.Run(global, cli)
	errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
