package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"smmpanel/internal/model"
	"smmpanel/internal/mw"
	"smmpanel/internal/service"
)

func GetBalanceHandler(balanceSvc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := r.Context().Value(mw.UserCtxKey).(string)

		balance, err := balanceSvc.Balance(r.Context(), userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]decimal.Decimal{"balance": balance}); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

type creditRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentCode string          `json:"payment_code"`
}

// CreditBalanceHandler records a top-up confirmed by the payment gateway;
// only the gateway-issued code is passed through.
func CreditBalanceHandler(balanceSvc *service.BalanceService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := r.Context().Value(mw.UserCtxKey).(string)

		var req creditRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := balanceSvc.Credit(r.Context(), userID, req.Amount, req.PaymentCode); err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				http.Error(w, "user not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
