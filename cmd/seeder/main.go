// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"time"

	"github.com/unclebandit/leadsms-backend/internal/config"
	"github.com/unclebandit/leadsms-backend/internal/db"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "json")
		boot.Fatal().Err(err).Msg("failed to load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	defer conn.Close()

	seedFiles := os.Args[1:]
	if len(seedFiles) == 0 {
		seedFiles = []string{"seed/contacts.csv"}
	}

	repo := &repository.ContactRepository{DB: conn}
	for _, file := range seedFiles {
		f, err := os.Open(file)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to read seed file")
		}
		contacts, err := seed.ReadContacts(f, cfg.DefaultRegion)
		f.Close()
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to parse seed file")
		}
		n, err := seed.Contacts(ctx, repo, contacts, log)
		if err != nil {
			log.Fatal().Err(err).Str("file", file).Msg("failed to seed contacts")
		}
		log.Info().Str("file", file).Int("contacts", n).Msg("seeded")
	}

	log.Info().Msg("database seeding completed successfully")
}
