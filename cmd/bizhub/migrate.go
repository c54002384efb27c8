package main

import (
	"fmt"

	"bizhub-backend/pkg/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		dsn       string
		printOnly bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		Long: `Apply the idempotent schema to the database named by --dsn or POSTGRES_DSN.

With --print the DDL is written to stdout instead, for pasting into the
Supabase SQL editor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), database.Schema())
				return err
			}
			if dsn == "" {
				dsn = a.cfg.PostgresDSN
			}
			if dsn == "" {
				return fmt.Errorf("no database: pass --dsn or set POSTGRES_DSN")
			}

			ctx := cmd.Context()
			db, err := database.NewPostgresDatabase(ctx, dsn, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			counts, err := db.TableCounts(ctx)
			if err != nil {
				return err
			}
			for _, table := range database.Tables {
				a.logger.Info("table ready", zap.String("table", table), zap.Int64("rows", counts[table]))
			}
			a.logger.Info("schema applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dsn, "dsn", "", "Postgres connection string (default: POSTGRES_DSN)")
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the schema instead of applying it")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	opts := database.SeedOptions{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the first organization and its admin",
		Long: `Create the bootstrap organization and admin profile in the configured
store. --admin-id must be the id of an existing Supabase auth user.
Running it again changes nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := database.NewDatabase(ctx, database.ConfigFromApp(a.cfg), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := database.Seed(ctx, db, opts)
			if err != nil {
				return err
			}
			a.logger.Info("seed complete",
				zap.String("org_id", res.Organization.ID),
				zap.String("admin_id", res.Admin.ID),
				zap.Bool("created_org", res.CreatedOrg),
				zap.Bool("created_admin", res.CreatedAdmin),
				zap.Bool("added_membership", res.AddedMembership))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s), admin %s\n", res.Organization.Name, res.Organization.ID, res.Admin.Email)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.OrgName, "org", "", "Organization name")
	cmd.Flags().StringVar(&opts.AdminID, "admin-id", "", "Auth user id of the admin")
	cmd.Flags().StringVar(&opts.AdminEmail, "admin-email", "", "Admin email")
	cmd.Flags().StringVar(&opts.AdminName, "admin-name", "", "Admin full name")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("admin-id")
	_ = cmd.MarkFlagRequired("admin-email")
	return cmd
}
