package handler

import (
	"encoding/json"
	"net/http"

	"smmpanel/internal/mw"
	"smmpanel/internal/storage"
)

func ListNotificationsHandler(store *storage.Notifications) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := r.Context().Value(mw.UserCtxKey).(string)

		list, err := store.ListByUser(r.Context(), userID, 100)
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
