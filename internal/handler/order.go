package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"smmpanel/internal/model"
	"smmpanel/internal/mw"
	"smmpanel/internal/service"
)

const maxBatchBody = 1 << 20 // batch text, one line per order

type createOrderRequest struct {
	ServiceID string `json:"service_id"`
	Link      string `json:"link"`
	Quantity  int    `json:"quantity"`
}

func CreateOrderHandler(submitter *service.Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := r.Context().Value(mw.UserCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.ServiceID == "" || req.Link == "" || req.Quantity <= 0 {
			http.Error(w, "service_id, link and positive quantity required", http.StatusUnprocessableEntity)
			return
		}

		order, err := submitter.Submit(r.Context(), userID, req.ServiceID, req.Link, req.Quantity)
		if err != nil {
			var (
				perr   *model.ProviderError
				orphan *model.OrphanOrderError
			)
			switch {
			case errors.Is(err, model.ErrServiceNotFound):
				http.Error(w, "service not found", http.StatusUnprocessableEntity)
			case errors.Is(err, model.ErrInsufficientBalance):
				http.Error(w, "insufficient balance", http.StatusPaymentRequired)
			case errors.Is(err, model.ErrAPIKeyMissing):
				http.Error(w, "provider API key not configured", http.StatusServiceUnavailable)
			case errors.As(err, &perr):
				http.Error(w, perr.Error(), http.StatusBadGateway)
			case errors.As(err, &orphan):
				// The provider order exists but was not saved locally; tell
				// the caller which one so it can be linked manually.
				slog.Error("orphaned provider order", "provider_order_id", orphan.ProviderOrderID, "error", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]string{
					"error":             "order created at provider but not saved",
					"provider_order_id": orphan.ProviderOrderID,
				})
			default:
				slog.Error("order create failed", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(order); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

// BatchOrderHandler accepts raw text, one serviceId|link|quantity per line,
// and returns one row result per line plus ok/error totals.
func BatchOrderHandler(submitter *service.Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID, ok := r.Context().Value(mw.UserCtxKey).(string)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBatchBody))
		if err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		lines, parseErrs := service.ParseLines(string(body))
		if len(lines) == 0 && len(parseErrs) == 0 {
			http.Error(w, "at least one line required: serviceId|link|quantity", http.StatusBadRequest)
			return
		}

		summary := submitter.SubmitBatch(r.Context(), userID, lines, parseErrs, func(percent int) {
			slog.Debug("batch progress", "user", userID, "percent", percent)
		})

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(summary); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func ListOrdersHandler(orders service.OrderStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := r.Context().Value(mw.UserCtxKey).(string)

		list, err := orders.ListByUser(r.Context(), userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(list) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(list); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
