package main

import (
	"os"

	"github.com/saif727/stellar-payroll-engine/cmd/payctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
