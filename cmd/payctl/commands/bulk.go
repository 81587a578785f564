package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/records"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/units"
)

var errIncompleteBatch = errors.New("batch did not complete")

// bulk <file>: send a payroll batch read from a CSV file, or stdin for "-".
func (c *cli) bulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk <file>",
		Short: "Send a payroll batch read from a CSV file",
		Long:  "Send a payroll batch read from a CSV file with one destination,amount[,memo]\n" +
			"row per recipient. Payments are submitted one at a time in file order.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("could not open batch file: %w", err)
				}
				defer file.Close()
				in = file
			}

			recipients, err := readBatch(in)
			if err != nil {
				return err
			}
			sgn, err := c.newSigner(c.cfg)
			if err != nil {
				return err
			}

			result, err := c.engine.Bulk.SendBulkPayments(cmd.Context(), sgn, recipients)
			if err != nil {
				return err
			}

			c.record(cmd.Context(), records.FromBatch(result)...)

			out := cmd.OutOrStdout()
			for _, item := range result.Items {
				amount := item.Amount.StringFixed(units.Precision)
				switch item.Status {
				case services.StatusSucceeded:
					fmt.Fprintf(out, "%3d  %-13s  %s  %s XLM  %s\n", item.Index, item.Status, item.Destination, amount, item.Outcome.Hash)
				case services.StatusFailed, services.StatusUnknown:
					fmt.Fprintf(out, "%3d  %-13s  %s  %s XLM  %s: %v\n", item.Index, item.Status, item.Destination, amount, failure.ReasonOf(item.Err), item.Err)
				default:
					fmt.Fprintf(out, "%3d  %-13s  %s  %s XLM\n", item.Index, item.Status, item.Destination, amount)
				}
			}
			fmt.Fprintf(out, "batch %s: %d succeeded, %d failed, %d unknown, %d not attempted\n",
				result.ID, result.Succeeded, result.Failed, result.Unknown, result.NotAttempted)

			if result.Succeeded != len(result.Items) {
				return errIncompleteBatch
			}
			return nil
		},
	}
	return cmd
}
