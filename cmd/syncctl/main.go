// Command syncctl runs price and ticker syncs and schema migrations from the
// command line. It is meant for cron jobs and operators and shares its wiring
// with the API server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "sync")
	}
	commander.Register(&migrateCmd{}, "database")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
