package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"smmpanel/internal/model"
	"smmpanel/internal/provider"
	"smmpanel/internal/service"
)

// ListServicesHandler refreshes the catalog snapshot from the provider and
// returns it.
func ListServicesHandler(catalog *service.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := catalog.Refresh(r.Context()); err != nil {
			if errors.Is(err, model.ErrAPIKeyMissing) {
				http.Error(w, "provider API key not configured", http.StatusServiceUnavailable)
				return
			}
			slog.Error("catalog refresh failed", "error", err)
			http.Error(w, "provider unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(catalog.List()); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

// ProviderBalanceHandler passes the provider account balance through, for
// the admin dashboard.
func ProviderBalanceHandler(client *provider.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		balance, err := client.Balance(r.Context())
		if err != nil {
			if errors.Is(err, model.ErrAPIKeyMissing) {
				http.Error(w, "provider API key not configured", http.StatusServiceUnavailable)
				return
			}
			slog.Error("provider balance failed", "error", err)
			http.Error(w, "provider unavailable", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(balance); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}
