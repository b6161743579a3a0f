package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"confreg/internal/app"
	"confreg/internal/platform/config"
	"confreg/internal/platform/logger"
	"confreg/internal/receipt/service"
)

var Version = "dev"

// receipts is what the commands need from the pipeline.
type receipts interface {
	Status(ctx context.Context, registrationID string) (*service.StatusView, error)
	Retry(ctx context.Context, registrationID string, force bool, recipient string) (*service.Result, error)
	RenderReceipt(ctx context.Context, registrationID string) ([]byte, string, error)
}

type opener func(ctx context.Context) (receipts, func(), error)

func main() {
	if err := newRootCmd(openFromEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "receiptctl",
		Short:         "Inspect and re-run payment receipts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Duration("timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(statusCmd(open))
	root.AddCommand(retryCmd(open))
	root.AddCommand(renderCmd(open))
	return root
}

// openFromEnv builds the same pipeline as the server, minus the payment
// gateways. Logs go to stderr so stdout stays machine readable.
func openFromEnv(ctx context.Context) (receipts, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateCore(); err != nil {
		return nil, nil, err
	}
	a, err := app.Build(ctx, cfg, logger.NewWithWriter(os.Stderr, cfg.LogLevel))
	if err != nil {
		return nil, nil, err
	}
	return a.Receipts, a.Close, nil
}

// withReceipts opens the pipeline under the --timeout deadline.
func withReceipts(cmd *cobra.Command, open opener, fn func(ctx context.Context, r receipts) error) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	r, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, r)
}
