// Package balance caches per-account balance snapshots. The cache only gates
// pre-flight decisions; the network remains the final arbiter at submission.
package balance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/saif727/stellar-payroll-engine/failure"
	"github.com/saif727/stellar-payroll-engine/ledger"
	"github.com/saif727/stellar-payroll-engine/units"
)

// Snapshot is an account's balance at a point in time. Values are in lumens.
type Snapshot struct {
	Account        string
	Funded         bool
	Total          decimal.Decimal
	Spendable      decimal.Decimal
	MinimumReserve decimal.Decimal
	CapturedAt     time.Time
}

// Cache holds one snapshot per account for a fixed time to live.
type Cache struct {
	log      zerolog.Logger
	provider ledger.Provider
	cfg      Config
	entries  *expirable.LRU[string, Snapshot]
	now      func() time.Time
}

// New creates a balance cache reading through the given provider.
func New(log zerolog.Logger, provider ledger.Provider, options ...Option) *Cache {
	cfg := DefaultConfig
	for _, option := range options {
		option(&cfg)
	}

	c := Cache{
		log:      log.With().Str("component", "balance_cache").Logger(),
		provider: provider,
		cfg:      cfg,
		entries:  expirable.NewLRU[string, Snapshot](cfg.Size, nil, cfg.TTL),
		now:      time.Now,
	}

	return &c
}

// Get returns the cached snapshot for an account, loading it on a miss. An
// unfunded account yields a zero snapshot rather than an error. Transient
// provider errors are returned categorized and are not cached.
func (c *Cache) Get(ctx context.Context, account string) (Snapshot, error) {
	snapshot, ok := c.entries.Get(account)
	if ok {
		return snapshot, nil
	}

	entry, err := c.provider.Account(ctx, account)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		snapshot = c.unfunded(account)
	case err != nil:
		c.log.Warn().Str("account", account).Err(err).Msg("could not load balance")
		return Snapshot{}, ledger.CategorizeRead(err)
	default:
		snapshot, err = c.snapshot(entry)
		if err != nil {
			return Snapshot{}, err
		}
	}

	c.entries.Add(account, snapshot)

	c.log.Debug().
		Str("account", account).
		Str("total", snapshot.Total.String()).
		Str("spendable", snapshot.Spendable.String()).
		Bool("funded", snapshot.Funded).
		Msg("balance cached")

	return snapshot, nil
}

// Refresh drops the cached entry and loads a fresh snapshot.
func (c *Cache) Refresh(ctx context.Context, account string) (Snapshot, error) {
	c.Invalidate(account)
	return c.Get(ctx, account)
}

// Invalidate removes the cached snapshot of an account.
func (c *Cache) Invalidate(account string) {
	c.entries.Remove(account)
}

func (c *Cache) unfunded(account string) Snapshot {
	s := Snapshot{
		Account:        account,
		Funded:         false,
		Total:          decimal.Zero,
		Spendable:      decimal.Zero,
		MinimumReserve: c.cfg.BaseReserve.Mul(decimal.NewFromInt(baseEntries)),
		CapturedAt:     c.now(),
	}
	return s
}

func (c *Cache) snapshot(entry ledger.Account) (Snapshot, error) {
	total, err := units.Lumens(entry.NativeBalance)
	if err != nil {
		return Snapshot{}, failure.Unknown(fmt.Errorf("could not parse balance of %s: %w", entry.ID, err))
	}

	reserve := MinimumReserve(c.cfg.BaseReserve, entry)
	spendable := total.Sub(reserve)
	if spendable.IsNegative() {
		spendable = decimal.Zero
	}

	s := Snapshot{
		Account:        entry.ID,
		Funded:         true,
		Total:          total,
		Spendable:      spendable,
		MinimumReserve: reserve,
		CapturedAt:     c.now(),
	}
	return s, nil
}

// baseEntries is the number of base reserves every account holds on its own.
const baseEntries = 2

// MinimumReserve computes the balance an account must retain:
// (2 + subentries + sponsoring - sponsored) base reserves.
func MinimumReserve(baseReserve decimal.Decimal, entry ledger.Account) decimal.Decimal {
	count := int64(baseEntries) + int64(entry.SubentryCount) + int64(entry.NumSponsoring) - int64(entry.NumSponsored)
	if count < 0 {
		count = 0
	}
	return baseReserve.Mul(decimal.NewFromInt(count))
}
