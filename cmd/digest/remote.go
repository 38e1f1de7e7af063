package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	digestmail "github.com/digestmail/digestmail/sdk/go"
)

var (
	remoteServer   string
	remoteToken    string
	remoteInterval time.Duration
	remoteTimeout  time.Duration
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Drive a running compose server",
}

var remoteSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Start a send on the server and follow its progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newRemoteClient()
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()

		runID, err := c.Send(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Started run %s\n", runID)

		final, err := c.WaitForRun(ctx, runID, remoteInterval, func(p *digestmail.Progress) {
			fmt.Fprintf(out, "[%3.0f%%] %s\n", p.Percent*100, p.Message)
		})
		if err != nil {
			return err
		}
		if final.Status == digestmail.RunStatusFailed {
			return fmt.Errorf("%s", final.Message)
		}
		if final.Failed > 0 {
			return errRecipientFailures
		}
		return nil
	},
}

var remoteWatchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Follow the progress of a run on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
		defer cancel()

		out := cmd.OutOrStdout()
		final, err := newRemoteClient().WaitForRun(ctx, args[0], remoteInterval, func(p *digestmail.Progress) {
			fmt.Fprintf(out, "[%3.0f%%] %s\n", p.Percent*100, p.Message)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Run %s %s: %d sent, %d failed\n", final.RunID, final.Status, final.Sent, final.Failed)
		return nil
	},
}

func init() {
	remoteCmd.PersistentFlags().StringVar(&remoteServer, "server", "http://127.0.0.1:8501", "compose server URL")
	remoteCmd.PersistentFlags().StringVar(&remoteToken, "token", os.Getenv("DIGESTMAIL_TOKEN"), "bearer token (default: $DIGESTMAIL_TOKEN)")
	remoteCmd.PersistentFlags().DurationVar(&remoteInterval, "interval", time.Second, "progress poll interval")
	remoteCmd.PersistentFlags().DurationVar(&remoteTimeout, "timeout", 30*time.Minute, "give up after this long")

	remoteCmd.AddCommand(remoteSendCmd)
	remoteCmd.AddCommand(remoteWatchCmd)
}

func newRemoteClient() *digestmail.Client {
	return digestmail.NewClient(digestmail.Config{BaseURL: remoteServer, Token: remoteToken})
}
