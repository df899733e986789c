package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// stubBetService returns canned results so the handler's mapping logic can
// be tested without a real engine.
type stubBetService struct {
	placeErr   error
	resolveErr error
	won        bool
	wager      domain.Wager
	wagerErr   error

	gotChoice domain.Choice
	gotStake  int64
}

func (s *stubBetService) Place(_ context.Context, _ common.Address, choice domain.Choice, stake int64) (domain.RequestID, error) {
	s.gotChoice = choice
	s.gotStake = stake
	if s.placeErr != nil {
		return "", s.placeErr
	}
	return "req-1", nil
}

func (s *stubBetService) Resolve(context.Context, common.Address) (bool, error) {
	return s.won, s.resolveErr
}

func (s *stubBetService) ActiveWager(context.Context, common.Address) (domain.Wager, error) {
	return s.wager, s.wagerErr
}

func newTestMux(svc *stubBetService) *http.ServeMux {
	h := NewBetHandler(svc, nil, slog.Default())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bets", h.PlaceBet)
	mux.HandleFunc("POST /api/bets/{participant}/resolve", h.ResolveBet)
	mux.HandleFunc("GET /api/bets/{participant}", h.GetActiveWager)
	return mux
}

const testAddr = "0x00000000000000000000000000000000000000Aa"

func TestPlaceBetAccepted(t *testing.T) {
	svc := &stubBetService{}
	mux := newTestMux(svc)

	body := `{"participant":"` + testAddr + `","choice":"heads","stake":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.ChoiceHeads, svc.gotChoice)
	assert.Equal(t, int64(100), svc.gotStake)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp["request_id"])
	assert.Equal(t, float64(196), resp["potential_payout"])
}

func TestPlaceBetNumericChoice(t *testing.T) {
	svc := &stubBetService{}
	mux := newTestMux(svc)

	body := `{"participant":"` + testAddr + `","choice":2,"stake":100}`
	req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.ChoiceTails, svc.gotChoice)
}

func TestPlaceBetBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad address", `{"participant":"nope","choice":1,"stake":100}`},
		{"unknown choice word", `{"participant":"` + testAddr + `","choice":"edge","stake":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(&stubBetService{})
			req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPlaceBetErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrAlreadyActive, http.StatusConflict},
		{domain.ErrInvalidChoice, http.StatusBadRequest},
		{domain.ErrInsufficientBalance, http.StatusPaymentRequired},
		{domain.ErrBetOutOfRange, http.StatusUnprocessableEntity},
		{domain.ErrTransferFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			mux := newTestMux(&stubBetService{placeErr: tt.err})
			body := `{"participant":"` + testAddr + `","choice":1,"stake":100}`
			req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader(body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestResolveBet(t *testing.T) {
	mux := newTestMux(&stubBetService{won: true})

	req := httptest.NewRequest(http.MethodPost, "/api/bets/"+testAddr+"/resolve", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp resolveBetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Won)
}

func TestResolveBetErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNoActiveWager, http.StatusNotFound},
		{domain.ErrRandomnessNotReady, http.StatusConflict},
		{domain.ErrPayoutFailed, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			mux := newTestMux(&stubBetService{resolveErr: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/bets/"+testAddr+"/resolve", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGetActiveWager(t *testing.T) {
	w := domain.Wager{
		Participant:     common.HexToAddress(testAddr),
		Choice:          domain.ChoiceTails,
		Stake:           100,
		PotentialPayout: 196,
		RequestID:       "req-1",
		PlacedAt:        time.Now().UTC(),
	}
	mux := newTestMux(&stubBetService{wager: w})

	req := httptest.NewRequest(http.MethodGet, "/api/bets/"+testAddr, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp activeWagerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "tails", resp.Choice)
	assert.Equal(t, int64(196), resp.PotentialPayout)
}

func TestGetActiveWagerNotFound(t *testing.T) {
	mux := newTestMux(&stubBetService{wagerErr: domain.ErrNoActiveWager})

	req := httptest.NewRequest(http.MethodGet, "/api/bets/"+testAddr, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
