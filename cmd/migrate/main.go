package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/pricesync-backend/pkg/config"
	"github.com/angelmondragon/pricesync-backend/pkg/db"
	"github.com/angelmondragon/pricesync-backend/pkg/logger"
	"github.com/angelmondragon/pricesync-backend/pkg/migrate"
)

const usage = `usage: migrate [-dir path] <command> [arg]

commands:
  up               apply every pending migration
  down             roll back the latest migration
  status           list migrations and whether they are applied
  version [n]      print the schema version, or migrate up/down to n
  create <name>    write a new empty migration into -dir
  validate         check migration files in -dir
`

func main() {
	dir := flag.String("dir", "", "migrations directory (default: embedded set; "+migrate.DefaultDir+" for create)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd := args[0]

	_ = godotenv.Load()

	switch cmd {
	case "create":
		if len(args) < 2 {
			fail("missing migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(target, args[1], time.Now())
		if err != nil {
			fail("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateFS(migrate.Source(*dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fail("load config: %v", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		fail("goose migrations target postgres; sqlite mode uses gorm automigrate at startup")
	}

	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Environment: cfg.App.Env,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithField(context.Background(), "cmd", cmd)

	dbClient, err := db.New(ctx, cfg.DB, db.Options{}, logg)
	if err != nil {
		logg.Error(ctx, "database unavailable", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		fail("sql database: %v", err)
	}
	runner, err := migrate.NewRunner(sqlDB, migrate.Source(*dir))
	if err != nil {
		fail("%v", err)
	}

	switch cmd {
	case "up":
		applied, err := runner.Up(ctx)
		printApplied(applied)
		if err != nil {
			fail("%v", err)
		}
	case "down":
		applied, err := runner.Down(ctx)
		if err != nil {
			fail("%v", err)
		}
		if applied != nil {
			printApplied([]migrate.Applied{*applied})
		}
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			fail("%v", err)
		}
		printStatus(statuses)
	case "version":
		if len(args) < 2 {
			v, err := runner.Version(ctx)
			if err != nil {
				fail("%v", err)
			}
			fmt.Println(v)
			return
		}
		target, err := migrate.ParseVersion(args[1])
		if err != nil {
			fail("%v", err)
		}
		applied, err := runner.To(ctx, target)
		printApplied(applied)
		if err != nil {
			fail("%v", err)
		}
	default:
		fail("unknown command %q\n\n%s", cmd, usage)
	}
}

func printApplied(applied []migrate.Applied) {
	if len(applied) == 0 {
		fmt.Println("nothing to do")
		return
	}
	for _, m := range applied {
		fmt.Printf("%-4s %d %s (%s)\n", m.Direction, m.Version, m.Path, m.Duration.Round(time.Millisecond))
	}
}

func printStatus(statuses []migrate.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		state, at := "pending", "-"
		if st.Applied {
			state, at = "applied", st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Version, state, at, st.Path)
	}
	_ = w.Flush()
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
