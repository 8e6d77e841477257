package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/database"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply, roll back or inspect the SQL migrations" }
func (*migrateCmd) Usage() string {
	return `syncctl migrate <up|down|version> [N]

  Runs the migrations under ./migrations against the DB_* database.
  down rolls back N migrations (default 1).
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (p *migrateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1 || f.NArg() > 2 {
		fmt.Fprint(os.Stderr, p.Usage())
		return subcommands.ExitUsageError
	}
	action := database.MigrateAction(f.Arg(0))
	steps := 1
	if f.NArg() == 2 {
		n, err := strconv.Atoi(f.Arg(1))
		if err != nil {
			fail(fmt.Errorf("invalid step count: %w", err))
			return subcommands.ExitUsageError
		}
		steps = n
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		fail(fmt.Errorf("failed to load database configuration: %w", err))
		return subcommands.ExitFailure
	}

	state, err := database.Migrate(dbConfig.MigrationURL(), action, steps)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	logger.Get().Infow("migration finished", "action", action, "version", state.Version, "dirty", state.Dirty)
	printMarkdown(migrationReport(action, state))
	return subcommands.ExitSuccess
}
