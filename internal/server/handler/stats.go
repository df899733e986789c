package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/engine"
)

// StatsService exposes the engine's aggregate counters.
type StatsService interface {
	Stats() engine.Stats
}

// StatsHandler serves aggregate game statistics and settlement history.
type StatsHandler struct {
	stats    StatsService
	treasury domain.Treasury
	history  domain.SettlementStore
	logger   *slog.Logger
}

// NewStatsHandler creates a StatsHandler. history may be nil when settlement
// persistence is disabled.
func NewStatsHandler(stats StatsService, treasury domain.Treasury, history domain.SettlementStore, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{
		stats:    stats,
		treasury: treasury,
		history:  history,
		logger:   logger,
	}
}

// statsResponse extends the engine counters with the live reserve balance.
type statsResponse struct {
	engine.Stats
	Reserve int64 `json:"reserve"`
}

// GetStats returns lifetime staked and paid totals, the payout ratio, and
// the current reserve balance.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	reserve, err := h.treasury.Balance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: reserve balance failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read reserve balance")
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Stats:   h.stats.Stats(),
		Reserve: reserve,
	})
}

// settlementView is the wire representation of one settled bet.
type settlementView struct {
	ID          int64  `json:"id"`
	Participant string `json:"participant"`
	Choice      string `json:"choice"`
	Outcome     string `json:"outcome"`
	Stake       int64  `json:"stake"`
	Payout      int64  `json:"payout"`
	Won         bool   `json:"won"`
	Paid        bool   `json:"paid"`
	RequestID   string `json:"request_id"`
	SettledAt   string `json:"settled_at"`
}

// listSettlementsResponse wraps the settlement list response.
type listSettlementsResponse struct {
	Settlements []settlementView `json:"settlements"`
}

// ListSettlements returns recently settled bets, newest first.
// GET /api/settlements?limit=50&offset=0
func (h *StatsHandler) ListSettlements(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, listSettlementsResponse{Settlements: []settlementView{}})
		return
	}

	settlements, err := h.history.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list settlements failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list settlements")
		return
	}

	views := make([]settlementView, 0, len(settlements))
	for _, s := range settlements {
		views = append(views, settlementView{
			ID:          s.ID,
			Participant: s.Participant,
			Choice:      s.Choice.String(),
			Outcome:     s.Outcome.String(),
			Stake:       s.Stake,
			Payout:      s.Payout,
			Won:         s.Won,
			Paid:        s.Paid,
			RequestID:   string(s.RequestID),
			SettledAt:   s.SettledAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, listSettlementsResponse{Settlements: views})
}
