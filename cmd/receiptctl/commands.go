package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func statusCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <registrationId>",
		Short: "Show the receipt processing flags of a registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			return withReceipts(cmd, open, func(ctx context.Context, r receipts) error {
				view, err := r.Status(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(view)
				}
				fmt.Fprintf(out, "Registration:   %s\n", view.RegistrationID)
				fmt.Fprintf(out, "Payment:        %s (%s)\n", orDash(view.PaymentStatus), view.PaymentMethod)
				fmt.Fprintf(out, "Email sent:     %s\n", yesNo(view.EmailSent, view.EmailRecipient))
				fmt.Fprintf(out, "PDF generated:  %s\n", yesNo(view.PDFGenerated, ""))
				fmt.Fprintf(out, "PDF stored:     %s\n", yesNo(view.PDFStored, view.PDFAssetID))
				fmt.Fprintf(out, "Webhook:        %s\n", yesNo(view.WebhookProcessed, ""))
				fmt.Fprintf(out, "Last result:    %s\n", orDash(view.LastResult))
				return nil
			})
		},
	}
	cmd.Flags().BoolP("json", "j", false, "print JSON")
	return cmd
}

func retryCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <registrationId>",
		Short: "Re-run the receipt pipeline from the stored payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			to, _ := cmd.Flags().GetString("email")
			return withReceipts(cmd, open, func(ctx context.Context, r receipts) error {
				res, err := r.Retry(ctx, args[0], force, to)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if res.AlreadyProcessed {
					fmt.Fprintln(out, "Receipt already processed; use --force to resend")
					return nil
				}
				fmt.Fprintf(out, "Transaction:    %s\n", res.TransactionID)
				fmt.Fprintf(out, "Email sent:     %s\n", yesNo(res.EmailSent, res.EmailRecipient))
				fmt.Fprintf(out, "PDF generated:  %s\n", yesNo(res.PDFGenerated, ""))
				fmt.Fprintf(out, "PDF uploaded:   %s\n", yesNo(res.PDFUploaded, res.PDFAssetID))
				if len(res.Failures) > 0 {
					steps := make([]string, 0, len(res.Failures))
					for _, f := range res.Failures {
						steps = append(steps, f.Step)
					}
					return fmt.Errorf("receipt run degraded: %s", strings.Join(steps, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "resend even if a receipt was already sent")
	cmd.Flags().String("email", "", "send to this address instead of the registration's")
	return cmd
}

func renderCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <registrationId>",
		Short: "Render a registration's receipt to a local PDF without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("out")
			return withReceipts(cmd, open, func(ctx context.Context, r receipts) error {
				data, name, err := r.RenderReceipt(ctx, args[0])
				if err != nil {
					return err
				}
				if path == "" {
					path = name
				} else if st, serr := os.Stat(path); serr == nil && st.IsDir() {
					path = filepath.Join(path, name)
				}
				if err := os.WriteFile(path, data, 0o644); err != nil {
					return fmt.Errorf("write receipt: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file or directory (default: receipt file name)")
	return cmd
}

func yesNo(ok bool, detail string) string {
	s := "no"
	if ok {
		s = "yes"
	}
	if detail != "" {
		s += " (" + detail + ")"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
