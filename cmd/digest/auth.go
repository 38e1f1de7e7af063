package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/digestmail/digestmail/internal/auth"
	"github.com/digestmail/digestmail/internal/email"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Gmail sending through the browser consent flow",
	RunE:  runAuth,
}

var (
	tokenSubject string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the compose server",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenSubject, "subject", "s", "digest-cli", "token subject")
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	g := cfg.Email.Gmail
	if g.TokenFile == "" {
		return fmt.Errorf("email.gmail.token_file is not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	out := cmd.OutOrStdout()
	tok, err := email.AuthorizeInstalledApp(ctx, g.ClientID, g.ClientSecret, func(url string) {
		fmt.Fprintf(out, "Open this URL in your browser to authorize sending:\n\n  %s\n\n", url)
	})
	if err != nil {
		return err
	}

	store := email.NewTokenStore(g.TokenFile)
	if err := store.Save(tok); err != nil {
		return err
	}
	fmt.Fprintf(out, "Token saved to %s\n", store.Path())
	if g.ForgetToken {
		fmt.Fprintln(out, "It will be removed after the next send.")
	}
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tok, expires, err := auth.NewTokenService(cfg.Security).Issue(tokenSubject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
	return nil
}
