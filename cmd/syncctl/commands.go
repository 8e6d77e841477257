package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/middleware"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

var commands = []subcommands.Command{
	&pricesCmd{},
	&tickersCmd{},
	&searchCmd{},
	&latestCmd{},
	&devUserCmd{},
}

type pricesCmd struct {
	types   string
	ids     string
	owner   string
	force   bool
	maxAge  time.Duration
	limit   int
	trigger string
}

func (*pricesCmd) Name() string     { return "prices" }
func (*pricesCmd) Synopsis() string { return "refresh stored asset prices from the market sources" }
func (*pricesCmd) Usage() string {
	return `syncctl prices [-types STOCK,FUND] [-ids <id,...>] [-owner <user id>] [-force] [-max-age 1h] [-limit n]

  Runs one price sync over every asset, or the subset selected by the flags,
  and prints the outcome as a markdown report.
`
}

func (p *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.types, "types", "", "Comma-separated asset types to sync.")
	f.StringVar(&p.ids, "ids", "", "Comma-separated asset IDs to sync. Overrides -types.")
	f.StringVar(&p.owner, "owner", "", "Only sync assets of this user.")
	f.BoolVar(&p.force, "force", false, "Bypass the price cache and stored-price freshness.")
	f.DurationVar(&p.maxAge, "max-age", 0, "Serve assets whose stored price is younger than this.")
	f.IntVar(&p.limit, "limit", 0, "Process at most this many assets.")
	f.StringVar(&p.trigger, "trigger", models.TriggerCron, "Trigger recorded in the sync log (manual, cron, api).")
}

func (p *pricesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	opts := pricesync.Options{
		AssetIDs:    splitList(p.ids),
		OwnerID:     p.owner,
		Force:       p.force,
		MaxAge:      p.maxAge,
		Limit:       p.limit,
		TriggeredBy: p.trigger,
	}
	for _, raw := range splitList(p.types) {
		t, ok := models.ParseAssetType(raw)
		if !ok {
			fail(fmt.Errorf("unknown asset type %q", raw))
			return subcommands.ExitUsageError
		}
		opts.AssetTypes = append(opts.AssetTypes, t)
	}

	a, closeFn, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	result, err := a.Prices.Sync(ctx, opts)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	printMarkdown(priceReport(result))
	if result.Status() == models.SyncStatusFailed {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type tickersCmd struct {
	syncType string
	force    bool
	policy   string
}

func (*tickersCmd) Name() string     { return "tickers" }
func (*tickersCmd) Synopsis() string { return "reload the ticker directory from BIST and TEFAS" }
func (*tickersCmd) Usage() string {
	return `syncctl tickers [-type BIST|TEFAS|FULL] [-force] [-policy best_effort|atomic]

  Replaces the ticker directory entries of the selected categories.
`
}

func (p *tickersCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.syncType, "type", string(tickers.SyncTypeFull), "Categories to reload (BIST, TEFAS, FULL).")
	f.BoolVar(&p.force, "force", false, "Reload even if the last sync is recent.")
	f.StringVar(&p.policy, "policy", string(tickers.PolicyBestEffort), "Row failure policy (best_effort, atomic).")
}

func (p *tickersCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	syncType, ok := tickers.ParseSyncType(p.syncType)
	if !ok {
		fail(fmt.Errorf("unknown sync type %q", p.syncType))
		return subcommands.ExitUsageError
	}
	policy := tickers.ReplacePolicy(p.policy)
	if policy != tickers.PolicyBestEffort && policy != tickers.PolicyAtomic {
		fail(fmt.Errorf("unknown policy %q", p.policy))
		return subcommands.ExitUsageError
	}

	a, closeFn, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	report, err := a.Tickers.Sync(ctx, tickers.SyncRequest{
		Type:        syncType,
		Force:       p.force,
		TriggeredBy: models.TriggerCron,
		Policy:      policy,
	})
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	printMarkdown(tickerReport(report))
	for _, r := range report.Results {
		if r.Status == models.SyncStatusFailed {
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}

type searchCmd struct {
	assetType string
	limit     int
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search the ticker directory" }
func (*searchCmd) Usage() string {
	return `syncctl search [-type STOCK|FUND] [-limit n] <query>
`
}

func (p *searchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.assetType, "type", "", "Restrict to one asset type.")
	f.IntVar(&p.limit, "limit", tickers.DefaultSearchLimit, "Maximum results.")
}

func (p *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, p.Usage())
		return subcommands.ExitUsageError
	}
	var assetType models.AssetType
	if p.assetType != "" {
		t, ok := models.ParseAssetType(p.assetType)
		if !ok {
			fail(fmt.Errorf("unknown asset type %q", p.assetType))
			return subcommands.ExitUsageError
		}
		assetType = t
	}

	a, closeFn, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	hits, err := a.Tickers.Search(ctx, f.Arg(0), assetType, p.limit)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	printMarkdown(searchReport(f.Arg(0), hits))
	return subcommands.ExitSuccess
}

type latestCmd struct {
	kind string
}

func (*latestCmd) Name() string     { return "latest" }
func (*latestCmd) Synopsis() string { return "print the current price of a symbol" }
func (*latestCmd) Usage() string {
	return `syncctl latest [-type STOCK] <symbol>

  -type takes an asset type (STOCK, FUND, GOLD, ...) or a provider
  category (EQUITY, COMMODITY, CURRENCY, CRYPTO).
`
}

func (p *latestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.kind, "type", string(models.AssetTypeStock), "Asset type or provider category of the symbol.")
}

func (p *latestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, p.Usage())
		return subcommands.ExitUsageError
	}
	if _, ok := models.ParseAssetType(p.kind); !ok {
		if _, ok := resolver.ParseCategory(p.kind); !ok {
			fail(fmt.Errorf("unknown price type %q", p.kind))
			return subcommands.ExitUsageError
		}
	}

	a, closeFn, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	record, err := a.Prices.LatestPrice(ctx, f.Arg(0), p.kind)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	printMarkdown(quoteReport(record))
	return subcommands.ExitSuccess
}

type devUserCmd struct {
	email    string
	password string
	ttl      time.Duration
}

func (*devUserCmd) Name() string     { return "dev-user" }
func (*devUserCmd) Synopsis() string { return "create a local user and print an access token for it" }
func (*devUserCmd) Usage() string {
	return `syncctl dev-user -email <email> -password <password> [-ttl 1h]

  For local development without the auth service. Creates the user if it
  does not exist, checks the password and prints a bearer token signed with
  JWT_SECRET.
`
}

func (p *devUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.email, "email", "dev@localhost", "User email.")
	f.StringVar(&p.password, "password", "", "User password.")
	f.DurationVar(&p.ttl, "ttl", time.Hour, "Token lifetime.")
}

func (p *devUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.password == "" {
		fmt.Fprint(os.Stderr, p.Usage())
		return subcommands.ExitUsageError
	}

	a, closeFn, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	user, created, err := a.Users.EnsureUser(ctx, p.email, p.password, "", "")
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if !a.Users.VerifyPassword(user, p.password) {
		fail(fmt.Errorf("user %s exists with a different password", user.Email))
		return subcommands.ExitFailure
	}

	token, err := middleware.GenerateAccessToken(user, p.ttl)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	printMarkdown(devUserReport(user, created, token, p.ttl))
	return subcommands.ExitSuccess
}
