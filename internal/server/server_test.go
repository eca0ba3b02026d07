package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsreel/internal/ledger"
	"newsreel/internal/types"
)

type statsLedger struct {
	stats *ledger.Stats
	err   error
}

func (l *statsLedger) Record(ctx context.Context, rec *types.AttemptRecord) error { return nil }
func (l *statsLedger) Exists(ctx context.Context, identity, sourceURL string) (bool, error) {
	return false, nil
}
func (l *statsLedger) Get(ctx context.Context, identity string) (*types.AttemptRecord, error) {
	return nil, nil
}
func (l *statsLedger) Stats(ctx context.Context) (*ledger.Stats, error) { return l.stats, l.err }
func (l *statsLedger) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return 0, nil
}
func (l *statsLedger) Close() error { return nil }

func TestHandleHealth(t *testing.T) {
	s := &Server{store: &statsLedger{}}

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid health payload: %v", err)
	}
	if parsed.Status != "ok" {
		t.Fatalf("expected ok status, got %q", parsed.Status)
	}
}

func TestHandleStats(t *testing.T) {
	s := &Server{store: &statsLedger{stats: &ledger.Stats{
		TotalAttempts:     12,
		Successes:         9,
		Sections:          map[string]int{"business": 7, "sports": 5},
		PlatformSuccesses: map[string]int{"instagram": 8, "youtube": 6},
	}}}

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var parsed ledger.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid stats payload: %v", err)
	}
	if parsed.TotalAttempts != 12 || parsed.Successes != 9 {
		t.Fatalf("unexpected totals: %+v", parsed)
	}
	if parsed.Sections["business"] != 7 {
		t.Fatalf("section counts lost: %+v", parsed.Sections)
	}
	if parsed.PlatformSuccesses["instagram"] != 8 {
		t.Fatalf("platform counts lost: %+v", parsed.PlatformSuccesses)
	}
}

func TestHandleStatsLedgerError(t *testing.T) {
	s := &Server{store: &statsLedger{err: errors.New("db locked")}}

	rec := httptest.NewRecorder()
	s.handleStats(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
