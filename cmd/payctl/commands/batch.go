package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/saif727/stellar-payroll-engine/services"
)

// readBatch reads payroll recipients from CSV rows of the form
// destination,amount[,memo]. Blank lines and lines starting with # are
// skipped, as is a leading header row naming the destination column.
// Amounts that do not parse are kept as NaN so that batch validation reports
// them with their position.
func readBatch(r io.Reader) ([]services.Recipient, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var recipients []services.Recipient
	for first := true; ; first = false {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("could not read batch: %w", err)
		}
		if first && strings.EqualFold(strings.TrimSpace(row[0]), "destination") {
			continue
		}
		if len(row) < 2 || len(row) > 3 {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: want destination,amount[,memo], got %d fields", line, len(row))
		}

		amount, err := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err != nil {
			amount = math.NaN()
		}
		recipient := services.Recipient{
			Destination: strings.TrimSpace(row[0]),
			Amount:      amount,
		}
		if len(row) == 3 {
			recipient.Memo = row[2]
		}
		recipients = append(recipients, recipient)
	}

	return recipients, nil
}
