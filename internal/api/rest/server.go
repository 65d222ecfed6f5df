// Package rest provides functionality for initializing a server.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/danilovkiri/dk-go-mmsledger/internal/api/rest/handlers"
	"github.com/danilovkiri/dk-go-mmsledger/internal/api/rest/middleware"
	"github.com/danilovkiri/dk-go-mmsledger/internal/client"
	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/broker/v1/broker"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/distributor/v1/distributor"
	ledgerService "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1/ledger"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/performance/v1/performance"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/referral/v1/referral"
	"github.com/danilovkiri/dk-go-mmsledger/internal/service/secretary/v1/secretary"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1"
	"github.com/danilovkiri/dk-go-mmsledger/internal/storage/v1/inpsql"
	"github.com/go-chi/chi"
	chimiddleware "github.com/go-chi/chi/middleware"
	"github.com/rs/zerolog"
)

// InitServer returns a http.Server object ready to be listening and serving.
func InitServer(ctx context.Context, cfg *config.Config, log *zerolog.Logger, wg *sync.WaitGroup) (server *http.Server, err error) {
	//initialize secretary
	secretaryService, err := secretary.NewSecretaryService(cfg.SecretConfig)
	if err != nil {
		return nil, err
	}

	// initialize token handler
	tokenHandler, err := middleware.NewTokenHandler(secretaryService, log)
	if err != nil {
		return nil, err
	}

	// initialize storage
	st, err := inpsql.InitStorage(ctx, cfg.StorageConfig, log)
	if err != nil {
		return nil, err
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("closing storage failed")
			return
		}
		log.Info().Msg("storage closed")
	}()

	// initialize notification broker
	var publisher ledgerService.Publisher
	if cfg.NotifierConfig.WebhookURL != "" {
		webhookClient := client.InitClient(cfg.NotifierConfig, log)
		brokerService := broker.InitBroker(ctx, webhookClient, cfg.QueueConfig, log, wg)
		brokerService.ListenAndProcess()
		publisher = brokerService
	} else {
		log.Warn().Msg("notification webhook is not configured, ledger events will not be delivered")
	}

	urlHandler, err := InitHandlers(st, publisher, cfg, log)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         cfg.ServerConfig.ServerAddress,
		Handler:      NewRouter(urlHandler, tokenHandler),
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return srv, nil
}

// InitHandlers builds every service on top of st and returns their HTTP handlers.
func InitHandlers(st storage.Storage, publisher ledgerService.Publisher, cfg *config.Config, log *zerolog.Logger) (*handlers.Handler, error) {
	ledgerSvc, err := ledger.InitService(st, publisher, cfg.LedgerConfig, log)
	if err != nil {
		return nil, err
	}
	distributorSvc, err := distributor.InitService(st, publisher, cfg.LedgerConfig, log)
	if err != nil {
		return nil, err
	}
	referralSvc, err := referral.InitService(st, log)
	if err != nil {
		return nil, err
	}
	performanceSvc, err := performance.InitService(st, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg(fmt.Sprintf("ledger services initialized, timezone %s", cfg.LedgerConfig.Location))
	return handlers.InitHandlers(ledgerSvc, distributorSvc, referralSvc, performanceSvc, cfg.ServerConfig, log)
}

// NewRouter sets the routing of every API endpoint behind token authentication.
func NewRouter(h *handlers.Handler, tokenHandler *middleware.TokenHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Compress(5, "application/json"))
	r.Route("/api", func(r chi.Router) {
		r.Use(tokenHandler.TokenHandle)

		r.Get("/wallet", h.HandleGetWallet())
		r.Post("/wallet/transfer", h.HandleTransfer())
		r.Get("/asset", h.HandleGetAsset())
		r.Post("/asset/place", h.HandlePlaceAsset())
		r.Post("/asset/withdraw", h.HandleWithdrawAsset())
		r.Get("/statements", h.HandleGetStatements())
		r.Get("/earnings", h.HandleGetEarnings())
		r.Get("/network", h.HandleGetNetwork())

		r.Post("/profit/withdraw", h.HandleRequestWithdrawal(modelledger.CategoryProfit))
		r.Post("/profit/convert", h.HandleConvert(modelledger.CategoryProfit))
		r.Post("/commission/withdraw", h.HandleRequestWithdrawal(modelledger.CategoryCommission))
		r.Post("/commission/convert", h.HandleConvert(modelledger.CategoryCommission))
		r.Get("/commission/daily", h.HandleGetDailyCommission())

		r.Route("/admin", func(r chi.Router) {
			r.Post("/asset/placements/{id}", h.HandleProcessPlacement())
			r.Post("/asset/withdrawals/{id}", h.HandleProcessAssetWithdrawal())
			r.Post("/withdrawals/{id}", h.HandleProcessWithdrawalRequest())
			r.Post("/distribution", h.HandleRunDistribution())
			r.Put("/users", h.HandleRegisterUser())
			r.Post("/users/{userID}/verification", h.HandleProcessVerification())
			r.Post("/welcome-bonus/{userID}", h.HandleGrantWelcomeBonus())
			r.Post("/reset-balances", h.HandleResetBalances())
			r.Post("/setup-wallet", h.HandleSetupWallet())
			r.Post("/sharing-profit", h.HandleShareProfit())
			r.Get("/operational-profit", h.HandleGetOperationalProfit())
			r.Put("/operational-profit", h.HandleSetOperationalProfit())
		})

		r.Route("/performance", func(r chi.Router) {
			r.Get("/monthly", h.HandleListMonthlyProfits())
			r.Post("/monthly", h.HandleCreateMonthlyProfit())
			r.Put("/monthly", h.HandleUpdateMonthlyProfit())
			r.Delete("/monthly", h.HandleDeleteMonthlyProfit())
			r.Get("/yearly", h.HandleYearlyTotal())
		})
	})
	return r
}
