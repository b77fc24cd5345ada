package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taxdesk/internal/config"
	"taxdesk/internal/database"
	"taxdesk/internal/logger"
	"taxdesk/internal/services"
	"taxdesk/internal/util"
)

type options struct {
	username string
	email    string
	password string
	fullName string
	staff    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "create_admin",
		Short: "Create a staff account for reading submitted queries",
		Long: `Creates an admin account (or a plain staff account with --staff-only)
in the configured database. The account can then log in at /api/v1/auth/login.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.username, "username", "u", "admin", "login name")
	cmd.Flags().StringVarP(&opts.email, "email", "e", "", "email address (required)")
	cmd.Flags().StringVarP(&opts.password, "password", "p", "", "password, at least 8 characters (required)")
	cmd.Flags().StringVar(&opts.fullName, "full-name", "System Administrator", "display name")
	cmd.Flags().BoolVar(&opts.staff, "staff-only", false, "create a staff account without admin rights")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func run(ctx context.Context, opts *options, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if err := database.Init(&cfg.Database, logger.Named(log, "database")); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	authSvc := services.NewAuthService(database.GetDB(), util.NewTokenManager(&cfg.Auth), log)
	user, err := authSvc.CreateUser(ctx, services.CreateUserParams{
		Username: opts.username,
		Email:    opts.email,
		Password: opts.password,
		FullName: opts.fullName,
		IsAdmin:  !opts.staff,
		IsStaff:  true,
	})
	if err != nil {
		return err
	}

	log.Info("account created", zap.String("username", user.Username), zap.Bool("admin", user.IsAdmin))
	fmt.Fprintf(cmd.OutOrStdout(), "Account %q created.\n", user.Username)
	return nil
}
