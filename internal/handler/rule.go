package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smmpanel/internal/model"
	"smmpanel/internal/service"
)

func CreateRuleHandler(ruleSvc *service.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var in service.CreateRuleInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		rule, err := ruleSvc.Create(r.Context(), in)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrRuleMatcherRequired),
				errors.Is(err, model.ErrNegativeMarkup),
				errors.Is(err, model.ErrNegativeFee):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		if err := json.NewEncoder(w).Encode(rule); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

func ListRulesHandler(ruleSvc *service.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		rules, err := ruleSvc.List(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rules); err != nil {
			http.Error(w, "encode error", http.StatusInternalServerError)
		}
	}
}

type setActiveRequest struct {
	Active bool `json:"is_active"`
}

func SetRuleActiveHandler(ruleSvc *service.RuleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "rule id required", http.StatusBadRequest)
			return
		}

		var req setActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := ruleSvc.SetActive(r.Context(), id, req.Active); err != nil {
			if errors.Is(err, model.ErrRuleNotFound) {
				http.Error(w, "rule not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}
