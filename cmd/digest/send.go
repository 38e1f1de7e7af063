package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/service"
)

var errRecipientFailures = errors.New("some recipients could not be sent to")

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the saved draft to every recipient in the list",
	RunE:  runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	a, err := openDraft()
	if err != nil {
		return errors.New(service.Describe(err))
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	printer := service.ProgressFunc(func(_ context.Context, p model.Progress) {
		if p.Status == model.RunStatusRunning && p.Sent+p.Failed == 0 {
			fmt.Fprintf(out, "Sending to %d recipients (run %s)\n", p.Total, p.RunID)
			return
		}
		fmt.Fprintf(out, "[%3.0f%%] %s\n", p.Percent()*100, p.Message)
	})

	summary, err := a.Compose.Send(context.Background(), service.SendOptions{
		Progress: service.MultiReporter(printer, service.StoreReporter(a.Progress, a.Log)),
	})
	if err != nil {
		return errors.New(service.Describe(err))
	}

	for _, f := range summary.Failures {
		fmt.Fprintf(out, "  failed #%d %s: %s\n", f.Position, f.Recipient.Email, f.Error)
	}
	fmt.Fprintf(out, "Sent %d of %d emails\n", summary.Succeeded, summary.Attempted)
	if summary.Failed() > 0 {
		return fmt.Errorf("%w: %d failed", errRecipientFailures, summary.Failed())
	}
	return nil
}
