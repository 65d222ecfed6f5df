// Command migrate applies or reverts the ledger schema migrations.
//
//	migrate [-d DSN] up|down|version|steps N
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/logger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/inpsql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
)

func main() {
	log := logger.InitLog("migrate", os.Getenv("LOG_LEVEL"))

	cfg, err := config.NewStorageConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	d := flag.String("d", cfg.DatabaseDSN, "PSQL DB connection DSN")
	flag.Parse()
	if *d == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate [-d DSN] up|down|version|steps N")
		os.Exit(2)
	}

	db, err := sqlx.Open("pgx", *d)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database failed")
	}
	defer db.Close()
	m, err := inpsql.NewMigrator(db.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("initializing migrator failed")
	}

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		var n int
		n, err = strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatal().Err(err).Msg("steps requires an integer argument")
		}
		err = m.Steps(n)
	case "version":
	default:
		log.Fatal().Msg(fmt.Sprintf("unknown command %q", cmd))
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatal().Err(err).Msg("migration failed")
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.Fatal().Err(err).Msg("reading schema version failed")
	}
	log.Info().Msg(fmt.Sprintf("schema version %d, dirty %v", version, dirty))
}
