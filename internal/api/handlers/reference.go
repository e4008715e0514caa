package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/budgetbook/budgetbook/internal/api/middleware"
	"github.com/budgetbook/budgetbook/internal/domain"
)

// ReferenceStore reads the entities import rows are resolved against.
type ReferenceStore interface {
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListGoals(ctx context.Context) ([]domain.Goal, error)
}

// ReferenceHandler serves the account, category and goal listings the import
// UI needs for its correction surface.
type ReferenceHandler struct {
	store ReferenceStore
	log   zerolog.Logger
}

// NewReferenceHandler creates a new reference handler.
func NewReferenceHandler(store ReferenceStore, log zerolog.Logger) *ReferenceHandler {
	return &ReferenceHandler{store: store, log: log}
}

// ListAccounts handles GET /api/accounts
func (h *ReferenceHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.store.ListAccounts(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// ListCategories handles GET /api/categories
func (h *ReferenceHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// ListGoals handles GET /api/goals
func (h *ReferenceHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.store.ListGoals(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list goals")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list goals")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"goals": goals,
		"count": len(goals),
	})
}
