package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	handlersErrors "github.com/danilovkiri/dk-go-mmsledger/internal/api/rest/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/api/rest/middleware"
	"github.com/danilovkiri/dk-go-mmsledger/internal/config"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	distributorService "github.com/danilovkiri/dk-go-mmsledger/internal/service/distributor/v1"
	ledgerService "github.com/danilovkiri/dk-go-mmsledger/internal/service/ledger/v1"
	performanceService "github.com/danilovkiri/dk-go-mmsledger/internal/service/performance/v1"
	referralService "github.com/danilovkiri/dk-go-mmsledger/internal/service/referral/v1"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

type Handler struct {
	ledger       ledgerService.Ledger
	distributor  distributorService.Distributor
	referral     referralService.Referral
	performance  performanceService.Performance
	serverConfig *config.ServerConfig
	log          *zerolog.Logger
}

func InitHandlers(
	ledger ledgerService.Ledger,
	distributor distributorService.Distributor,
	referral referralService.Referral,
	performance performanceService.Performance,
	serverConfig *config.ServerConfig,
	log *zerolog.Logger,
) (*Handler, error) {
	if ledger == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil ledger was passed to handlers initializer"}
	}
	if distributor == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil distributor was passed to handlers initializer"}
	}
	if referral == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil referral service was passed to handlers initializer"}
	}
	if performance == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil performance service was passed to handlers initializer"}
	}
	if serverConfig == nil || log == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil config or logger was passed to handlers initializer"}
	}
	return &Handler{
		ledger:       ledger,
		distributor:  distributor,
		referral:     referral,
		performance:  performance,
		serverConfig: serverConfig,
		log:          log,
	}, nil
}

// HandleGetWallet returns the caller's wallet.
func (h *Handler) HandleGetWallet() http.HandlerFunc {
	return h.withActor("HandleGetWallet", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		return h.ledger.GetWallet(ctx, actor.UserID)
	})
}

// HandleGetAsset returns the caller's asset position and deposit locks.
func (h *Handler) HandleGetAsset() http.HandlerFunc {
	return h.withActor("HandleGetAsset", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		return h.ledger.GetAsset(ctx, actor.UserID)
	})
}

// HandleGetStatements lists the caller's entries, optionally filtered by kinds and category.
func (h *Handler) HandleGetStatements() http.HandlerFunc {
	return h.withActor("HandleGetStatements", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		filter := modelledger.EntryFilter{UserID: actor.UserID}
		if raw := r.URL.Query().Get("kinds"); raw != "" {
			for _, kind := range strings.Split(raw, ",") {
				filter.Kinds = append(filter.Kinds, modelledger.EntryKind(strings.ToUpper(strings.TrimSpace(kind))))
			}
		}
		if raw := r.URL.Query().Get("category"); raw != "" {
			filter.Category = modelledger.PointCategory(strings.ToUpper(raw))
			if !filter.Category.Valid() {
				return nil, &handlersErrors.BadRequestError{Msg: fmt.Sprintf("unknown category %q", raw)}
			}
		}
		entries, err := h.ledger.ListStatements(ctx, filter)
		if err != nil {
			return nil, err
		}
		if entries == nil {
			entries = []modelledger.Entry{}
		}
		return entries, nil
	})
}

// HandleGetEarnings totals the caller's earnings per kind over a date range.
func (h *Handler) HandleGetEarnings() http.HandlerFunc {
	return h.withActor("HandleGetEarnings", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		from, to, err := dateRange(r)
		if err != nil {
			return nil, err
		}
		return h.ledger.EarningsSummary(ctx, actor.UserID, from, to)
	})
}

// HandleGetDailyCommission returns the caller's commission per day.
func (h *Handler) HandleGetDailyCommission() http.HandlerFunc {
	return h.withActor("HandleGetDailyCommission", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		from, to, err := dateRange(r)
		if err != nil {
			return nil, err
		}
		days, err := h.ledger.DailyCommission(ctx, actor.UserID, from, to)
		if err != nil {
			return nil, err
		}
		if days == nil {
			days = []modeldto.DayTotal{}
		}
		return days, nil
	})
}

// HandleGetNetwork returns the caller's downline per level.
func (h *Handler) HandleGetNetwork() http.HandlerFunc {
	return h.withActor("HandleGetNetwork", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		depth := 0
		if raw := r.URL.Query().Get("depth"); raw != "" {
			var err error
			if depth, err = strconv.Atoi(raw); err != nil {
				return nil, &handlersErrors.BadRequestError{Msg: "depth must be an integer"}
			}
		}
		return h.referral.Network(ctx, actor.UserID, depth)
	})
}

func (h *Handler) HandleTransfer() http.HandlerFunc {
	return h.withActor("HandleTransfer", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.TransferRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		h.log.Info().Msg(fmt.Sprintf("new transfer request from %s to %s for %s", actor.UserID, req.Receiver, req.Amount))
		return h.ledger.Transfer(ctx, actor, req.Receiver, req.Amount, req.Description, req.Reference)
	})
}

func (h *Handler) HandlePlaceAsset() http.HandlerFunc {
	return h.withActor("HandlePlaceAsset", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.AmountRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		w.WriteHeader(http.StatusCreated)
		return h.ledger.PlaceAsset(ctx, actor, req.Amount)
	})
}

func (h *Handler) HandleWithdrawAsset() http.HandlerFunc {
	return h.withActor("HandleWithdrawAsset", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.AmountRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		w.WriteHeader(http.StatusCreated)
		return h.ledger.WithdrawAsset(ctx, actor, req.Amount)
	})
}

// HandleRequestWithdrawal files a payout request against category.
func (h *Handler) HandleRequestWithdrawal(category modelledger.PointCategory) http.HandlerFunc {
	return h.withActor("HandleRequestWithdrawal", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.AmountRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		w.WriteHeader(http.StatusCreated)
		return h.ledger.RequestWithdrawal(ctx, actor, category, req.Amount)
	})
}

// HandleConvert moves points of category into the master balance.
func (h *Handler) HandleConvert(category modelledger.PointCategory) http.HandlerFunc {
	return h.withActor("HandleConvert", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.AmountRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.ledger.Convert(ctx, actor, category, req.Amount)
	})
}

// actorHandlerFunc serves an authenticated request and returns the response body.
// A handler that writes its own status must do so before returning a nil error.
type actorHandlerFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error)

func (h *Handler) withActor(name string, fn actorHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.serverConfig.RequestTimeout)
		defer cancel()
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		sw := &statusWriter{ResponseWriter: w}
		body, err := fn(ctx, sw, r, actor)
		if err != nil {
			h.fail(w, name, actor, err)
			return
		}
		h.respond(sw, name, body)
	}
}

// statusWriter defers the status chosen by a handler until the body is ready,
// so a failing call can still answer with an error status.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
}

func (h *Handler) respond(w *statusWriter, name string, body interface{}) {
	if w.status == http.StatusNoContent {
		w.ResponseWriter.WriteHeader(http.StatusNoContent)
		return
	}
	resBody, err := json.Marshal(body)
	if err != nil {
		h.log.Error().Err(err).Msg(fmt.Sprintf("%s failed", name))
		http.Error(w.ResponseWriter, err.Error(), http.StatusInternalServerError)
		return
	}
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.ResponseWriter.WriteHeader(status)
	if _, err = w.ResponseWriter.Write(resBody); err != nil {
		h.log.Error().Err(err).Msg(fmt.Sprintf("%s failed", name))
	}
}

func (h *Handler) fail(w http.ResponseWriter, name string, actor modelclaims.Actor, err error) {
	status := handlersErrors.StatusCode(err)
	event := h.log.Warn()
	if status >= http.StatusInternalServerError {
		event = h.log.Error()
	}
	event.Err(err).Str("user", actor.UserID).Int("status", status).Msg(fmt.Sprintf("%s failed", name))
	resBody, _ := json.Marshal(modeldto.ErrorResponse{Error: err.Error()})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(resBody)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return &handlersErrors.BadRequestError{Msg: "Invalid Content-Type"}
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return &handlersErrors.BadRequestError{Msg: fmt.Sprintf("malformed request body: %v", err)}
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &handlersErrors.BadRequestError{Msg: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &handlersErrors.BadRequestError{Msg: fmt.Sprintf("%s must be an integer", name)}
	}
	return v, nil
}

// dateRange reads inclusive from/to dates; either bound may be omitted.
func dateRange(r *http.Request) (from, to time.Time, err error) {
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = time.Parse(dateLayout, raw); err != nil {
			return from, to, &handlersErrors.BadRequestError{Msg: "from must be formatted as YYYY-MM-DD"}
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if to, err = time.Parse(dateLayout, raw); err != nil {
			return from, to, &handlersErrors.BadRequestError{Msg: "to must be formatted as YYYY-MM-DD"}
		}
		to = to.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return from, to, &handlersErrors.BadRequestError{Msg: "from must not be after to"}
	}
	return from, to, nil
}
