package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/saif727/stellar-payroll-engine/config"
	"github.com/saif727/stellar-payroll-engine/controllers"
	"github.com/saif727/stellar-payroll-engine/records"
)

const (
	success = 0
	failure = 1
)

func main() {
	os.Exit(run())
}

func run() int {

	// Signal catching for clean shutdown.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	// Settings come from the environment; flags override them.
	cfg := config.FromEnv()
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	// Logger initialization.
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.DebugLevel)
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Error().Str("level", cfg.LogLevel).Err(err).Msg("could not parse log level")
		return failure
	}
	log = log.Level(level)

	err = cfg.Validate()
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return failure
	}

	sgn, err := cfg.Signer()
	if err != nil {
		log.Error().Err(err).Msg("could not initialize signer")
		return failure
	}
	account, _ := sgn.Identity()

	engine := config.NewEngine(log, cfg)

	// Payment records are optional; without a database, outcomes are only
	// logged.
	var recorder controllers.Recorder
	if cfg.DatabaseURL != "" {
		store, err := records.Open(log, cfg.DatabaseURL)
		if err != nil {
			log.Error().Err(err).Msg("could not open records database")
			return failure
		}
		defer store.Close()
		err = store.Migrate(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("could not migrate records database")
			return failure
		}
		recorder = store
	}

	gin.SetMode(gin.ReleaseMode)
	ctrl := controllers.NewPaymentController(log, engine.Payments, engine.Bulk, sgn, recorder)
	server := &http.Server{
		Addr:              fmt.Sprint(":", cfg.Port),
		Handler:           controllers.NewRouter(log, ctrl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// This section launches the main executing components in their own
	// goroutine, so they can run concurrently. Afterwards, we wait for an
	// interrupt signal in order to proceed with the next section.
	done := make(chan struct{})
	failed := make(chan struct{})
	go func() {
		log.Info().
			Str("network", cfg.Network).
			Str("source", account).
			Uint16("port", cfg.Port).
			Msg("payment engine starting")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP API encountered error")
			close(failed)
		} else {
			close(done)
		}
		log.Info().Msg("payment engine stopped")
	}()

	select {
	case <-sig:
		log.Info().Msg("payment engine stopping")
	case <-done:
		log.Info().Msg("payment engine done")
	case <-failed:
		log.Warn().Msg("payment engine failed")
		return failure
	}
	go func() {
		<-sig
		log.Warn().Msg("forcing exit")
		os.Exit(1)
	}()

	// In-flight payments get the shutdown window to finish; submissions
	// themselves are not cancelled with their request.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = server.Shutdown(ctx)
	if err != nil {
		log.Error().Err(err).Msg("could not shut down HTTP API")
		return failure
	}

	return success
}
