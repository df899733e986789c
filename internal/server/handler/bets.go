package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// resolveLockTTL bounds how long a crashed instance can hold a participant's
// settlement lock.
const resolveLockTTL = 30 * time.Second

// BetService defines the methods that the bet handler requires from the
// game engine.
type BetService interface {
	Place(ctx context.Context, participant common.Address, choice domain.Choice, stake int64) (domain.RequestID, error)
	Resolve(ctx context.Context, participant common.Address) (bool, error)
	ActiveWager(ctx context.Context, participant common.Address) (domain.Wager, error)
}

// BetHandler serves bet placement, resolution and lookup endpoints.
type BetHandler struct {
	bets   BetService
	locks  domain.LockManager
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler. locks may be nil, in which case only
// the engine's in-process serialization applies.
func NewBetHandler(bets BetService, locks domain.LockManager, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		locks:  locks,
		logger: logger,
	}
}

// placeBetRequest is the JSON body for bet placement.
type placeBetRequest struct {
	Participant string          `json:"participant"`
	Choice      json.RawMessage `json:"choice"`
	Stake       int64           `json:"stake"`
}

// placeBetResponse confirms an accepted bet.
type placeBetResponse struct {
	Participant     string `json:"participant"`
	Choice          string `json:"choice"`
	Stake           int64  `json:"stake"`
	PotentialPayout int64  `json:"potential_payout"`
	RequestID       string `json:"request_id"`
}

// PlaceBet accepts a new wager for a participant.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req placeBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	participant, err := parseAddress(req.Participant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	choice := domain.ChoiceNone
	if len(req.Choice) > 0 {
		if choice, err = parseChoice(req.Choice); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	unlock, err := h.acquire(r.Context(), participant)
	if err != nil {
		writeBetError(w, r, h.logger, err)
		return
	}
	defer unlock()

	requestID, err := h.bets.Place(r.Context(), participant, choice, req.Stake)
	if err != nil {
		writeBetError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, placeBetResponse{
		Participant:     participant.Hex(),
		Choice:          choice.String(),
		Stake:           req.Stake,
		PotentialPayout: domain.PotentialPayout(req.Stake),
		RequestID:       string(requestID),
	})
}

// resolveBetResponse reports a settlement result.
type resolveBetResponse struct {
	Participant string `json:"participant"`
	Won         bool   `json:"won"`
}

// ResolveBet settles the participant's active wager against the verified
// random value. Returns 409 while the randomness is still pending.
// POST /api/bets/{participant}/resolve
func (h *BetHandler) ResolveBet(w http.ResponseWriter, r *http.Request) {
	participant, err := parseAddress(pathParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	unlock, err := h.acquire(r.Context(), participant)
	if err != nil {
		writeBetError(w, r, h.logger, err)
		return
	}
	defer unlock()

	won, err := h.bets.Resolve(r.Context(), participant)
	if err != nil {
		writeBetError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, resolveBetResponse{
		Participant: participant.Hex(),
		Won:         won,
	})
}

// activeWagerResponse describes a participant's open wager.
type activeWagerResponse struct {
	Participant     string    `json:"participant"`
	Choice          string    `json:"choice"`
	Stake           int64     `json:"stake"`
	PotentialPayout int64     `json:"potential_payout"`
	RequestID       string    `json:"request_id"`
	PlacedAt        time.Time `json:"placed_at"`
}

// GetActiveWager returns the participant's open wager, if any.
// GET /api/bets/{participant}
func (h *BetHandler) GetActiveWager(w http.ResponseWriter, r *http.Request) {
	participant, err := parseAddress(pathParam(r, "participant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wager, err := h.bets.ActiveWager(r.Context(), participant)
	if err != nil {
		writeBetError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, activeWagerResponse{
		Participant:     wager.Participant.Hex(),
		Choice:          wager.Choice.String(),
		Stake:           wager.Stake,
		PotentialPayout: wager.PotentialPayout,
		RequestID:       string(wager.RequestID),
		PlacedAt:        wager.PlacedAt,
	})
}

// acquire takes the cross-instance settlement lock for a participant. With
// no lock manager configured it returns a no-op unlock.
func (h *BetHandler) acquire(ctx context.Context, participant common.Address) (func(), error) {
	if h.locks == nil {
		return func() {}, nil
	}
	return h.locks.Acquire(ctx, "bet:"+participant.Hex(), resolveLockTTL)
}

// writeBetError maps domain errors onto HTTP status codes. Unrecognized
// errors are logged and returned as 500 without leaking internals.
func writeBetError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyActive),
		errors.Is(err, domain.ErrRandomnessNotReady),
		errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidChoice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, domain.ErrBetOutOfRange),
		errors.Is(err, domain.ErrNotACollaborator):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrNoActiveWager):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrPayoutFailed):
		logger.ErrorContext(r.Context(), "handler: transfer failure",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.ErrorContext(r.Context(), "handler: bet operation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
