package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saif727/stellar-payroll-engine/records"
	"github.com/saif727/stellar-payroll-engine/units"
)

// send <destination> <amount>: send one payment from the configured signer.
func (c *cli) sendCmd() *cobra.Command {
	var memo string
	cmd := &cobra.Command{
		Use:   "send <destination> <amount>",
		Short: "Send a single payment in lumens",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			sgn, err := c.newSigner(c.cfg)
			if err != nil {
				return err
			}

			outcome, err := c.engine.Payments.SendPayment(cmd.Context(), sgn, args[0], amount, memo)
			if err != nil {
				return err
			}

			display, _ := units.FromFloat(amount)
			c.record(cmd.Context(), records.FromPayment(outcome, display, memo))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "payment accepted in ledger %d\n", outcome.Ledger)
			fmt.Fprintf(out, "transaction: %s\n", outcome.Hash)
			return nil
		},
	}
	cmd.Flags().StringVarP(&memo, "memo", "m", "", "text memo, at most 28 bytes")
	return cmd
}
