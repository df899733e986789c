package archive

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/coinflip/internal/domain"
)

// fakeHistory serves a fixed settlement slice and records the since cutoff.
type fakeHistory struct {
	rows  []domain.Settlement
	since time.Time
}

func (h *fakeHistory) Insert(context.Context, domain.Settlement) error { return nil }

func (h *fakeHistory) ListRecent(context.Context, domain.ListOpts) ([]domain.Settlement, error) {
	return h.rows, nil
}

func (h *fakeHistory) ListSince(_ context.Context, since time.Time) ([]domain.Settlement, error) {
	h.since = since
	return h.rows, nil
}

// fakeWriter records which upload path was taken and the object contents.
type fakeWriter struct {
	path      string
	body      []byte
	multipart bool
	puts      int
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	w.puts++
	w.path = path
	w.body, _ = io.ReadAll(data)
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	w.puts++
	w.path = path
	w.multipart = true
	w.body, _ = io.ReadAll(data)
	return nil
}

func settlementRow(id int64) domain.Settlement {
	return domain.Settlement{
		ID:          id,
		Participant: "0x00000000000000000000000000000000000000aa",
		Choice:      domain.ChoiceHeads,
		Outcome:     domain.ChoiceHeads,
		Stake:       100,
		Payout:      196,
		Won:         true,
		Paid:        true,
		RequestID:   "req-1",
		SettledAt:   time.Now().UTC(),
	}
}

func TestExportWritesJSONLines(t *testing.T) {
	history := &fakeHistory{rows: []domain.Settlement{settlementRow(1), settlementRow(2)}}
	writer := &fakeWriter{}
	a := New(history, writer, "settlements", time.Hour, nil)

	require.NoError(t, a.Export(context.Background()))

	assert.True(t, strings.HasPrefix(writer.path, "settlements/settlements-"))
	assert.True(t, strings.HasSuffix(writer.path, ".jsonl"))
	assert.False(t, writer.multipart)

	scanner := bufio.NewScanner(bytes.NewReader(writer.body))
	var decoded []domain.Settlement
	for scanner.Scan() {
		var s domain.Settlement
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		decoded = append(decoded, s)
	}
	require.Len(t, decoded, 2)
	assert.Equal(t, int64(1), decoded[0].ID)
	assert.Equal(t, int64(196), decoded[1].Payout)
}

func TestExportNothingUploadsNoObject(t *testing.T) {
	writer := &fakeWriter{}
	a := New(&fakeHistory{}, writer, "settlements", time.Hour, nil)

	require.NoError(t, a.Export(context.Background()))
	assert.Zero(t, writer.puts)
}

func TestExportAdvancesCutoff(t *testing.T) {
	history := &fakeHistory{rows: []domain.Settlement{settlementRow(1)}}
	writer := &fakeWriter{}
	a := New(history, writer, "settlements", time.Hour, nil)

	start := a.lastExport
	require.NoError(t, a.Export(context.Background()))
	assert.Equal(t, start, history.since)
	assert.True(t, a.lastExport.After(start) || a.lastExport.Equal(start))

	// The next run only asks for rows settled after the previous one.
	history.rows = nil
	require.NoError(t, a.Export(context.Background()))
	assert.True(t, history.since.After(start) || history.since.Equal(start))
	assert.Equal(t, 1, writer.puts)
}

func TestExportLargeBatchUsesMultipart(t *testing.T) {
	rows := make([]domain.Settlement, 8)
	for i := range rows {
		rows[i] = settlementRow(int64(i + 1))
	}
	writer := &fakeWriter{}
	a := New(&fakeHistory{rows: rows}, writer, "settlements", time.Hour, nil)
	a.multipartThreshold = 64

	require.NoError(t, a.Export(context.Background()))
	assert.True(t, writer.multipart)
	assert.NotEmpty(t, writer.body)
}
