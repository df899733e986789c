package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/coinflip/internal/domain"
	"github.com/alanyoungcy/coinflip/internal/engine"
	"github.com/alanyoungcy/coinflip/internal/treasury"
)

type stubStatsService struct {
	stats engine.Stats
}

func (s *stubStatsService) Stats() engine.Stats { return s.stats }

type stubHistory struct {
	rows []domain.Settlement
	opts domain.ListOpts
}

func (s *stubHistory) Insert(context.Context, domain.Settlement) error { return nil }

func (s *stubHistory) ListRecent(_ context.Context, opts domain.ListOpts) ([]domain.Settlement, error) {
	s.opts = opts
	return s.rows, nil
}

func (s *stubHistory) ListSince(context.Context, time.Time) ([]domain.Settlement, error) {
	return s.rows, nil
}

func TestGetStatsIncludesReserve(t *testing.T) {
	svc := &stubStatsService{stats: engine.Stats{
		GameID:            "coinflip-test",
		TotalStaked:       300,
		TotalPaid:         196,
		PayoutNumerator:   196,
		PayoutDenominator: 100,
	}}
	h := NewStatsHandler(svc, treasury.NewMemory(50_000), &stubHistory{}, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "coinflip-test", resp["game_id"])
	assert.Equal(t, float64(300), resp["total_staked"])
	assert.Equal(t, float64(196), resp["total_paid"])
	assert.Equal(t, float64(50_000), resp["reserve"])
}

func TestListSettlements(t *testing.T) {
	history := &stubHistory{rows: []domain.Settlement{{
		ID:          1,
		Participant: testAddr,
		Choice:      domain.ChoiceHeads,
		Outcome:     domain.ChoiceHeads,
		Stake:       100,
		Payout:      196,
		Won:         true,
		Paid:        true,
		RequestID:   "req-1",
		SettledAt:   time.Now().UTC(),
	}}}
	h := NewStatsHandler(&stubStatsService{}, treasury.NewMemory(0), history, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/settlements?limit=10", nil)
	rec := httptest.NewRecorder()
	h.ListSettlements(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, history.opts.Limit)

	var resp listSettlementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Settlements, 1)
	assert.Equal(t, "heads", resp.Settlements[0].Choice)
	assert.True(t, resp.Settlements[0].Won)
}

func TestListSettlementsWithoutHistory(t *testing.T) {
	h := NewStatsHandler(&stubStatsService{}, treasury.NewMemory(0), nil, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/settlements", nil)
	rec := httptest.NewRecorder()
	h.ListSettlements(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listSettlementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Settlements)
}
