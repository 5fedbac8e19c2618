package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/unclebandit/leadsms-backend/internal/auth"
	"github.com/unclebandit/leadsms-backend/internal/config"
	"github.com/unclebandit/leadsms-backend/internal/db"
	"github.com/unclebandit/leadsms-backend/internal/diagnostic"
	"github.com/unclebandit/leadsms-backend/internal/logger"
	"github.com/unclebandit/leadsms-backend/internal/repository"
	"github.com/unclebandit/leadsms-backend/internal/seed"
)

type cliState struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:          "smsctl",
		Short:        "Operator tooling for the lead SMS service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			state.cfg = cfg
			state.log = logger.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	root.AddCommand(
		newMigrateCmd(state),
		newSeedCmd(state),
		newOperatorTokenCmd(state),
		newSimulateCmd(state),
	)
	return root
}

func newMigrateCmd(state *cliState) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|version|force N]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"up", "down", "version", "force"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return db.RunMigrate(state.log, state.cfg.Database.DSN(), args[0], args[1:])
		},
	}
}

func newSeedCmd(state *cliState) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load contacts from a CSV file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			contacts, err := seed.ReadContacts(f, state.cfg.DefaultRegion)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			conn, err := db.Open(ctx, state.cfg.Database, state.log)
			if err != nil {
				return err
			}
			defer conn.Close()

			n, err := seed.Contacts(ctx, &repository.ContactRepository{DB: conn}, contacts, state.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d contacts\n", n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "seed/contacts.csv", "CSV file with a phone column")
	return cmd
}

func newOperatorTokenCmd(state *cliState) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "operator-token",
		Short: "Mint a bearer token for the operator API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if state.cfg.OperatorJWTSecret == "" {
				return fmt.Errorf("OPERATOR_JWT_SECRET is not set")
			}
			tok, err := auth.IssueOperatorToken(state.cfg.OperatorJWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	return cmd
}

func newSimulateCmd(state *cliState) *cobra.Command {
	var from, body string
	cmd := &cobra.Command{
		Use:   "simulate-inbound",
		Short: "Post a simulated inbound SMS to the webhook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if from == "" {
				return fmt.Errorf("--from is required")
			}
			sim := diagnostic.NewSimulator(
				state.cfg.Webhook.URL,
				state.cfg.Webhook.User,
				state.cfg.Webhook.Password,
				state.cfg.Twilio.FromNumber,
			)
			res, err := sim.Simulate(cmd.Context(), from, body)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "sender number")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	return cmd
}
