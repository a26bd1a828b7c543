package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"ms-vitotrips/internal/config"
	"ms-vitotrips/internal/database/migrations"
	"ms-vitotrips/internal/logger"
)

const usage = `usage: migrate [-dir ./migrations] <command>

commands:
  up             apply all pending migrations
  down [steps]   roll back steps migrations (all when omitted)
  force <v>      set the schema version without running migrations
  version        print the current schema version`

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}
	cfg := config.Load()

	dir := flag.String("dir", cfg.Migrations.Dir, "directory holding the *.sql migrations")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	sqldb, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open database: %v", err))
	}
	runner := migrations.NewRunner(sqldb, *dir, log)
	defer runner.Close()

	if err := run(runner, flag.Args()); err != nil {
		log.Error("MIGRATE", err.Error())
		runner.Close()
		os.Exit(1)
	}
}

func run(runner *migrations.Runner, args []string) error {
	switch args[0] {
	case "up":
		return runner.Up()
	case "down":
		steps := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return runner.Down(steps)
	case "force":
		if len(args) < 2 {
			return fmt.Errorf("force needs a version")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[1])
		}
		return runner.Force(v)
	case "version":
		v, dirty, err := runner.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty=%t)\n", v, dirty)
		return nil
	}
	return fmt.Errorf("unknown command %q\n%s", args[0], usage)
}
