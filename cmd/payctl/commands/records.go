package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saif727/stellar-payroll-engine/units"
)

// records <account>: list stored outcomes for a source or recipient account.
func (c *cli) recordsCmd() *cobra.Command {
	var limit uint
	cmd := &cobra.Command{
		Use:   "records <account>",
		Short: "List recorded payment outcomes of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.newStore(c.log, c.cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			rs, err := s.List(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rs) == 0 {
				fmt.Fprintln(out, "no records")
				return nil
			}
			for _, r := range rs {
				line := fmt.Sprintf("%s  %-9s  %s -> %s  %s XLM",
					r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Status, r.Source, r.Recipient, r.Amount.StringFixed(units.Precision))
				if r.Hash != "" {
					line += "  " + r.Hash
				}
				if r.Reason != "" {
					line += "  " + r.Reason
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&limit, "limit", 50, "number of records to list")
	return cmd
}
