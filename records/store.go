// Package records persists payment outcomes once the engine has returned them.
// The engine never writes here itself; callers forward completed outcomes.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	// Postgres driver.
	_ "github.com/lib/pq"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/services"
	"github.com/saif727/stellar-payroll-engine/submit"
)

// Record is one persisted payment attempt. Hash and Ledger are empty unless
// the payment succeeded; Reason is empty unless it failed.
type Record struct {
	ID        uuid.UUID       `db:"id"`
	BatchID   uuid.NullUUID   `db:"batch_id"`
	Source    string          `db:"source"`
	Recipient string          `db:"recipient"`
	Amount    decimal.Decimal `db:"amount"`
	Memo      string          `db:"memo"`
	Hash      string          `db:"hash"`
	Ledger    int32           `db:"ledger"`
	Status    string          `db:"status"`
	Reason    string          `db:"reason"`
	CreatedAt time.Time       `db:"created_at"`
}

const schema = `
CREATE TABLE IF NOT EXISTS payment_records (
	id         UUID PRIMARY KEY,
	batch_id   UUID,
	source     TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	amount     NUMERIC(20, 7) NOT NULL,
	memo       TEXT NOT NULL DEFAULT '',
	hash       TEXT NOT NULL DEFAULT '',
	ledger     INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS payment_records_source_idx ON payment_records (source, created_at DESC);
CREATE INDEX IF NOT EXISTS payment_records_recipient_idx ON payment_records (recipient, created_at DESC);
`

const insertRecord = `
INSERT INTO payment_records (id, batch_id, source, recipient, amount, memo, hash, ledger, status, reason, created_at)
VALUES (:id, :batch_id, :source, :recipient, :amount, :memo, :hash, :ledger, :status, :reason, :created_at)`

const selectByAccount = `
SELECT id, batch_id, source, recipient, amount, memo, hash, ledger, status, reason, created_at
FROM payment_records
WHERE source = ? OR recipient = ?
ORDER BY created_at DESC
LIMIT ?`

// Store writes and reads payment records.
type Store struct {
	log zerolog.Logger
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to the Postgres database at the given URL.
func Open(log zerolog.Logger, url string) (*Store, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return New(log, db), nil
}

// New wraps an existing database handle.
func New(log zerolog.Logger, db *sqlx.DB) *Store {
	s := Store{
		log: log.With().Str("component", "records").Logger(),
		db:  db,
		now: time.Now,
	}
	return &s
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the records table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("could not create schema: %w", err)
	}
	return nil
}

// Save inserts the records in a single transaction.
func (s *Store) Save(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range records {
		if record.ID == uuid.Nil {
			record.ID = uuid.New()
		}
		if record.CreatedAt.IsZero() {
			record.CreatedAt = s.now().UTC()
		}
		_, err = tx.NamedExecContext(ctx, insertRecord, record)
		if err != nil {
			return fmt.Errorf("could not insert record for %s: %w", record.Recipient, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("could not commit records: %w", err)
	}

	s.log.Debug().Int("records", len(records)).Msg("payment records saved")

	return nil
}

// List returns the most recent records sent from or to an account.
func (s *Store) List(ctx context.Context, account string, limit uint) ([]Record, error) {
	var records []Record
	err := s.db.SelectContext(ctx, &records, s.db.Rebind(selectByAccount), account, account, limit)
	if err != nil {
		return nil, fmt.Errorf("could not list records of %s: %w", account, err)
	}
	return records, nil
}

// FromPayment creates the record of a single payment that was accepted.
func FromPayment(outcome submit.Outcome, amount decimal.Decimal, memo string) Record {
	r := Record{
		Source:    outcome.Source,
		Recipient: outcome.Destination,
		Amount:    amount,
		Memo:      memo,
		Hash:      outcome.Hash,
		Ledger:    outcome.Ledger,
		Status:    string(services.StatusSucceeded),
	}
	return r
}

// FromBatch creates one record per attempted item of a batch. Items that were
// never attempted are not recorded.
func FromBatch(result services.BatchResult) []Record {
	records := make([]Record, 0, len(result.Items))
	for _, item := range result.Items {
		if item.Status == services.StatusNotAttempted {
			continue
		}

		recipient := item.Account
		if recipient == "" {
			recipient = item.Destination
		}
		r := Record{
			BatchID:   uuid.NullUUID{UUID: result.ID, Valid: true},
			Source:    result.Source,
			Recipient: recipient,
			Amount:    item.Amount,
			Memo:      item.Memo,
			Status:    string(item.Status),
		}
		if item.Status == services.StatusSucceeded {
			r.Hash = item.Outcome.Hash
			r.Ledger = item.Outcome.Ledger
		} else {
			r.Reason = string(failure.ReasonOf(item.Err))
		}
		records = append(records, r)
	}
	return records
}
