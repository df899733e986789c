package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/policy"
)

// PolicyService swaps the engine's minimum-stake provider.
type PolicyService interface {
	SetStakePolicy(ctx context.Context, p domain.StakePolicy, name string) error
}

// DynamicPolicy is a stake policy whose floor can be updated at runtime.
type DynamicPolicy interface {
	domain.StakePolicy
	SetMinimum(ctx context.Context, minimum int64) error
}

// AdminHandler serves operator-only configuration endpoints.
type AdminHandler struct {
	engine  PolicyService
	dynamic DynamicPolicy // nil when Redis is not configured
	logger  *slog.Logger
}

// NewAdminHandler creates an AdminHandler. dynamic may be nil, in which case
// only the static provider is available.
func NewAdminHandler(engine PolicyService, dynamic DynamicPolicy, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:  engine,
		dynamic: dynamic,
		logger:  logger,
	}
}

// stakePolicyRequest selects the minimum-stake provider and, for the dynamic
// provider, optionally updates the stored floor.
type stakePolicyRequest struct {
	Provider     string `json:"provider"` // "static" or "redis"
	MinimumStake int64  `json:"minimum_stake"`
}

// SetStakePolicy swaps the minimum-stake provider used for bet validation.
// PUT /api/admin/stake-policy
func (h *AdminHandler) SetStakePolicy(w http.ResponseWriter, r *http.Request) {
	var req stakePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	var provider domain.StakePolicy
	switch req.Provider {
	case "static":
		if req.MinimumStake <= 0 {
			writeError(w, http.StatusBadRequest, "minimum_stake must be positive")
			return
		}
		provider = policy.Static{Min: req.MinimumStake}
	case "redis":
		if h.dynamic == nil {
			writeError(w, http.StatusUnprocessableEntity, "dynamic stake policy is not configured")
			return
		}
		if req.MinimumStake > 0 {
			if err := h.dynamic.SetMinimum(r.Context(), req.MinimumStake); err != nil {
				h.logger.ErrorContext(r.Context(), "handler: store minimum stake failed",
					slog.String("error", err.Error()),
				)
				writeError(w, http.StatusBadGateway, "failed to store minimum stake")
				return
			}
		}
		provider = h.dynamic
	default:
		writeError(w, http.StatusBadRequest, "provider must be \"static\" or \"redis\"")
		return
	}

	if err := h.engine.SetStakePolicy(r.Context(), provider, req.Provider); err != nil {
		if errors.Is(err, domain.ErrNotACollaborator) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, domain.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: set stake policy failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to set stake policy")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"provider":      req.Provider,
		"minimum_stake": req.MinimumStake,
	})
}
