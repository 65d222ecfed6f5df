package handlers

import (
	"context"
	"fmt"
	"net/http"

	handlersErrors "github.com/danilovkiri/dk-go-mmsledger/internal/api/rest/errors"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelclaims"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modeldto"
	"github.com/danilovkiri/dk-go-mmsledger/internal/models/modelledger"
	"github.com/go-chi/chi"
)

func decodeAction(r *http.Request) (modelledger.Action, error) {
	var req modeldto.ActionRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	return req.Action, nil
}

func (h *Handler) HandleProcessPlacement() http.HandlerFunc {
	return h.withActor("HandleProcessPlacement", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		action, err := decodeAction(r)
		if err != nil {
			return nil, err
		}
		return h.ledger.ProcessPlaceAsset(ctx, actor, id, action)
	})
}

func (h *Handler) HandleProcessAssetWithdrawal() http.HandlerFunc {
	return h.withActor("HandleProcessAssetWithdrawal", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		action, err := decodeAction(r)
		if err != nil {
			return nil, err
		}
		return h.ledger.ProcessWithdrawalAsset(ctx, actor, id, action)
	})
}

func (h *Handler) HandleProcessWithdrawalRequest() http.HandlerFunc {
	return h.withActor("HandleProcessWithdrawalRequest", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		id, err := pathID(r, "id")
		if err != nil {
			return nil, err
		}
		action, err := decodeAction(r)
		if err != nil {
			return nil, err
		}
		return h.ledger.ProcessWithdrawalRequest(ctx, actor, id, action)
	})
}

// HandleRunDistribution triggers the daily distribution with the rate of the current month.
func (h *Handler) HandleRunDistribution() http.HandlerFunc {
	return h.withActor("HandleRunDistribution", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		// the batch is bounded by the statement timeout, not by the request timeout
		return h.distributor.RunDistribution(context.WithoutCancel(ctx), actor)
	})
}

func (h *Handler) HandleGrantWelcomeBonus() http.HandlerFunc {
	return h.withActor("HandleGrantWelcomeBonus", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		return h.ledger.GrantWelcomeBonus(ctx, actor, chi.URLParam(r, "userID"))
	})
}

func (h *Handler) HandleRegisterUser() http.HandlerFunc {
	return h.withActor("HandleRegisterUser", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.UserRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.ledger.RegisterUser(ctx, actor, req)
	})
}

func (h *Handler) HandleProcessVerification() http.HandlerFunc {
	return h.withActor("HandleProcessVerification", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.VerificationRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.ledger.ProcessVerification(ctx, actor, chi.URLParam(r, "userID"), req.Action, req.RejectReason)
	})
}

func (h *Handler) HandleResetBalances() http.HandlerFunc {
	return h.withActor("HandleResetBalances", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		n, err := h.ledger.ResetAllBalances(ctx, actor)
		if err != nil {
			return nil, err
		}
		return modeldto.ResetResponse{Reset: n}, nil
	})
}

func (h *Handler) HandleSetupWallet() http.HandlerFunc {
	return h.withActor("HandleSetupWallet", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.SetupWalletRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.ledger.SetupWallet(ctx, actor, req)
	})
}

func (h *Handler) HandleShareProfit() http.HandlerFunc {
	return h.withActor("HandleShareProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.AmountRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.ledger.ShareProfit(ctx, actor, req.Amount)
	})
}

func (h *Handler) HandleSetOperationalProfit() http.HandlerFunc {
	return h.withActor("HandleSetOperationalProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.OperationalProfitRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.performance.SetOperationalProfit(ctx, actor, req.Year, req.Month, req.DailyProfitRate)
	})
}

func (h *Handler) HandleGetOperationalProfit() http.HandlerFunc {
	return h.withActor("HandleGetOperationalProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		year, month, err := yearMonth(r)
		if err != nil {
			return nil, err
		}
		return h.performance.GetOperationalProfit(ctx, year, month)
	})
}

func (h *Handler) HandleListMonthlyProfits() http.HandlerFunc {
	return h.withActor("HandleListMonthlyProfits", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		year, err := queryInt(r, "year")
		if err != nil {
			return nil, err
		}
		profits, err := h.performance.ListMonthlyProfits(ctx, year)
		if err != nil {
			return nil, err
		}
		if profits == nil {
			profits = []modelledger.MonthlyProfit{}
		}
		return profits, nil
	})
}

func (h *Handler) HandleCreateMonthlyProfit() http.HandlerFunc {
	return h.withActor("HandleCreateMonthlyProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.MonthlyProfitRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		w.WriteHeader(http.StatusCreated)
		return h.performance.CreateMonthlyProfit(ctx, actor, req.Year, req.Month, req.ProfitRate)
	})
}

func (h *Handler) HandleUpdateMonthlyProfit() http.HandlerFunc {
	return h.withActor("HandleUpdateMonthlyProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		var req modeldto.MonthlyProfitRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.performance.UpdateMonthlyProfit(ctx, actor, req.Year, req.Month, req.ProfitRate)
	})
}

func (h *Handler) HandleDeleteMonthlyProfit() http.HandlerFunc {
	return h.withActor("HandleDeleteMonthlyProfit", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		year, month, err := yearMonth(r)
		if err != nil {
			return nil, err
		}
		if err = h.performance.DeleteMonthlyProfit(ctx, actor, year, month); err != nil {
			return nil, err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil, nil
	})
}

func (h *Handler) HandleYearlyTotal() http.HandlerFunc {
	return h.withActor("HandleYearlyTotal", func(ctx context.Context, w http.ResponseWriter, r *http.Request, actor modelclaims.Actor) (interface{}, error) {
		year, err := queryInt(r, "year")
		if err != nil {
			return nil, err
		}
		return h.performance.YearlyTotal(ctx, year)
	})
}

func yearMonth(r *http.Request) (int, int, error) {
	year, err := queryInt(r, "year")
	if err != nil {
		return 0, 0, err
	}
	month, err := queryInt(r, "month")
	if err != nil {
		return 0, 0, err
	}
	if year == 0 || month == 0 {
		return 0, 0, &handlersErrors.BadRequestError{Msg: fmt.Sprintf("year and month are required, got %d-%d", year, month)}
	}
	return year, month, nil
}
