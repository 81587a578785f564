package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/saif727/stellar-payroll-engine/address"
	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/units"
)

// validate <address>: check an account ID or federation alias.
func (c *cli) validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <address>",
		Short: "Check an account ID or federation alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recipient, err := c.engine.Payments.ValidateAddress(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if recipient.Kind == address.KindAlias {
				fmt.Fprintf(out, "%s: federation alias (name %s, domain %s)\n", recipient.Address, recipient.Name, recipient.Domain)
				return nil
			}
			fmt.Fprintf(out, "%s: account ID\n", recipient.Address)
			return nil
		},
	}
	return cmd
}

// convert <amount>: convert lumens to stroops, or back with --base.
func (c *cli) convertCmd() *cobra.Command {
	var base bool
	cmd := &cobra.Command{
		Use:   "convert <amount>",
		Short: "Convert between lumens and stroops",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var display float64
			var err error
			if base {
				display, err = c.engine.Payments.ToDisplayUnits(args[0])
			} else {
				display, err = parseAmount(args[0])
			}
			if err != nil {
				return err
			}

			stroops, err := c.engine.Payments.ToBaseUnits(display)
			if err != nil {
				return err
			}
			formatted, err := c.engine.Payments.FormatDisplay(display)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s XLM = %s stroops\n", formatted, stroops)
			return nil
		},
	}
	cmd.Flags().BoolVar(&base, "base", false, "amount is given in stroops")
	return cmd
}

// balance <account>: show the balance the engine would check payments against.
func (c *cli) balanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance <account>",
		Short: "Show the balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := c.engine.Payments.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !snapshot.Funded {
				fmt.Fprintf(out, "%s: not funded\n", snapshot.Account)
				return nil
			}
			fmt.Fprintf(out, "account:   %s\n", snapshot.Account)
			fmt.Fprintf(out, "total:     %s XLM\n", snapshot.Total.StringFixed(units.Precision))
			fmt.Fprintf(out, "reserve:   %s XLM\n", snapshot.MinimumReserve.StringFixed(units.Precision))
			fmt.Fprintf(out, "spendable: %s XLM\n", snapshot.Spendable.StringFixed(units.Precision))
			return nil
		},
	}
	return cmd
}

// history <account>: list recent native payments.
func (c *cli) historyCmd() *cobra.Command {
	var limit uint
	cmd := &cobra.Command{
		Use:   "history <account>",
		Short: "List recent native payments of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payments, err := c.engine.Payments.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(payments) == 0 {
				fmt.Fprintln(out, "no payments")
				return nil
			}
			for _, p := range payments {
				fmt.Fprintf(out, "%s  %s -> %s  %s XLM  %s\n",
					p.CreatedAt.UTC().Format("2006-01-02 15:04:05"), p.From, p.To, p.Amount, p.Hash)
			}
			return nil
		},
	}
	cmd.Flags().UintVar(&limit, "limit", services.DefaultHistoryLimit, "number of payments to list")
	return cmd
}

func parseAmount(input string) (float64, error) {
	amount, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return 0, failure.InvalidAmount("amount is not a number: " + strconv.Quote(input))
	}
	return amount, nil
}
