// Command webhooksink is a development stand-in for the notification webhook.
// It logs every ledger event it receives and fails a share of requests so the
// broker's retries can be observed locally.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/danilovkiri/dk-go-mmsledger/internal/logger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelqueue"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

type SinkConfig struct {
	ServerAddress string `env:"SINK_ADDRESS"`
	FailPercent   int    `env:"SINK_FAIL_PERCENT" envDefault:"20"`
}

func NewSinkConfig() (*SinkConfig, error) {
	cfg := SinkConfig{}
	err := env.Parse(&cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func (c *SinkConfig) ParseFlags() {
	a := flag.String("a", ":7070", "Server address")
	flag.Parse()
	if isFlagPassed("a") || c.ServerAddress == "" {
		c.ServerAddress = *a
	}
}

func HandleEvent(cfg *SinkConfig, log *zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.FailPercent > rand.Intn(100) {
			log.Warn().Msg(fmt.Sprintf("failing delivery of %s on purpose", r.Header.Get("X-Event-ID")))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var event modelqueue.LedgerEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			log.Error().Err(err).Msg("malformed event")
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		log.Info().
			Str("event", event.ID).
			Str("operation", event.Operation).
			Str("user", event.UserID).
			Str("amount", event.Amount.StringFixed(2)).
			Int64("entry", event.EntryID).
			Str("status", event.Status).
			Msg("ledger event received")
		w.WriteHeader(http.StatusAccepted)
	}
}

func main() {
	log := logger.InitLog("webhooksink", os.Getenv("LOG_LEVEL"))
	cfg, err := NewSinkConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	cfg.ParseFlags()

	r := chi.NewRouter()
	r.Post("/events", HandleEvent(cfg, log))
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	log.Info().Msg(fmt.Sprintf("webhook sink listening on %s", cfg.ServerAddress))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("")
	}
}
