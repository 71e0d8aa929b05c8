package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlebattle/internal/config"
	"github.com/cory-johannsen/idlebattle/internal/frontend/handlers"
	"github.com/cory-johannsen/idlebattle/internal/game/character"
	"github.com/cory-johannsen/idlebattle/internal/observability"
)

var (
	tokenAccount string
	tokenTTL     time.Duration

	characterAccount string
	characterName    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token for an account (development use)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		tok, err := handlers.NewAuthenticator(cfg.Auth.JWTSecret).Issue(tokenAccount, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

var characterCmd = &cobra.Command{
	Use:   "character",
	Short: "Manage stored characters",
}

var characterCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a fresh level-1 character for an account",
	RunE:  runCharacterCreate,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenAccount, "account", "", "account ID to embed as the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("account")

	characterCreateCmd.Flags().StringVar(&characterAccount, "account", "", "owning account ID")
	characterCreateCmd.Flags().StringVar(&characterName, "name", "", "character name")
	_ = characterCreateCmd.MarkFlagRequired("account")
	_ = characterCreateCmd.MarkFlagRequired("name")
	characterCmd.AddCommand(characterCreateCmd)
}

func runCharacterCreate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	c, err := be.store.Create(ctx, character.New(characterAccount, characterName))
	if err != nil {
		return fmt.Errorf("creating character: %w", err)
	}
	logger.Info("character created",
		zap.String("account_id", c.AccountID),
		zap.String("name", c.Name),
	)
	return nil
}
