package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/saif727/stellar-payroll-engine/config"
	"github.com/saif727/stellar-payroll-engine/records"
	"github.com/saif727/stellar-payroll-engine/signer"
)

var errNoDatabase = errors.New("no records database configured, use --database")

// cli carries the settings and the lazily wired engine shared by all
// subcommands.
type cli struct {
	cfg    config.Config
	log    zerolog.Logger
	engine *config.Engine

	newEngine func(zerolog.Logger, config.Config) *config.Engine
	newSigner func(config.Config) (signer.Signer, error)
	newStore  func(zerolog.Logger, config.Config) (store, error)
}

// store is the part of the records store the CLI uses.
type store interface {
	Save(ctx context.Context, records ...records.Record) error
	List(ctx context.Context, account string, limit uint) ([]records.Record, error)
	Close() error
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := cli{
		cfg:       config.FromEnv(),
		newEngine: config.NewEngine,
		newSigner: config.Config.Signer,
		newStore:  openStore,
	}
	return c.root().ExecuteContext(ctx)
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:          "payctl",
		Short:        "Send and inspect Stellar payroll payments",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
			log := zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
			level, err := zerolog.ParseLevel(c.cfg.LogLevel)
			if err != nil {
				return err
			}
			c.log = log.Level(level)

			err = c.cfg.Validate()
			if err != nil {
				return err
			}

			c.engine = c.newEngine(c.log, c.cfg)
			return nil
		},
	}

	c.cfg.Bind(root.PersistentFlags())

	root.AddCommand(
		c.validateCmd(),
		c.convertCmd(),
		c.balanceCmd(),
		c.historyCmd(),
		c.sendCmd(),
		c.bulkCmd(),
		c.recordsCmd(),
	)
	return root
}

func openStore(log zerolog.Logger, cfg config.Config) (store, error) {
	if cfg.DatabaseURL == "" {
		return nil, errNoDatabase
	}
	s, err := records.Open(log, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// record saves outcomes when a records database is configured. Failing to
// record is logged only; the payments already happened.
func (c *cli) record(ctx context.Context, rs ...records.Record) {
	if c.cfg.DatabaseURL == "" || len(rs) == 0 {
		return
	}
	s, err := c.newStore(c.log, c.cfg)
	if err != nil {
		c.log.Error().Err(err).Msg("could not open records database")
		return
	}
	defer s.Close()
	err = s.Save(context.WithoutCancel(ctx), rs...)
	if err != nil {
		c.log.Error().Int("records", len(rs)).Err(err).Msg("could not record payment outcomes")
	}
}
