package platforms

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"newsreel/internal/assets"
	"newsreel/internal/config"
	"newsreel/internal/types"
)

func stageVideo(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("stage video: %v", err)
	}
	return path
}

func newTestYouTube(baseURL string) *YouTube {
	p := NewYouTube(config.YouTubeConfig{AccessToken: "tok"})
	p.uploadBase = baseURL
	return p
}

func TestYouTubePublishSuccess(t *testing.T) {
	var initiateCalls, putCalls atomic.Int32
	var mux *http.ServeMux
	var server *httptest.Server

	mux = http.NewServeMux()
	mux.HandleFunc("POST /videos", func(w http.ResponseWriter, r *http.Request) {
		initiateCalls.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		if !containsAll(string(body), `"categoryId":"25"`, "#Shorts") {
			t.Errorf("unexpected metadata: %s", body)
		}
		w.Header().Set("Location", server.URL+"/session/1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PUT /session/1", func(w http.ResponseWriter, r *http.Request) {
		putCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		if string(body) != "video bytes" {
			t.Errorf("uploaded bytes mismatch: %q", body)
		}
		fmt.Fprint(w, `{"id": "vid-42"}`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	p := newTestYouTube(server.URL)
	outcome := p.Publish(context.Background(), &assets.Asset{
		Title:          "Headline",
		Caption:        "caption",
		LocalVideoPath: stageVideo(t, "video bytes"),
	})

	if outcome.Status != types.StatusSuccess {
		t.Fatalf("expected success, got %+v", outcome)
	}
	if outcome.ExternalID != "vid-42" {
		t.Fatalf("expected video id, got %q", outcome.ExternalID)
	}
	if initiateCalls.Load() != 1 || putCalls.Load() != 1 {
		t.Fatalf("expected one initiate and one upload, got %d/%d", initiateCalls.Load(), putCalls.Load())
	}
	if got := p.quota.Remaining(); got != 10000-youtubeUploadCost {
		t.Fatalf("expected quota charged once, remaining %d", got)
	}
}

func TestYouTubeLocalQuotaGateBlocksCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	p := newTestYouTube(server.URL)
	p.quota.Exhaust()

	outcome := p.Publish(context.Background(), &assets.Asset{
		Title:          "Headline",
		LocalVideoPath: stageVideo(t, "x"),
	})

	if outcome.Status != types.StatusRateLimited {
		t.Fatalf("expected rate limited, got %+v", outcome)
	}
	if outcome.RetryAfter <= 0 {
		t.Fatal("expected retry-after hint pointing at the quota reset")
	}
	if calls.Load() != 0 {
		t.Fatal("quota-blocked attempt must not reach the network")
	}
}

func TestYouTubeQuotaExceededExhaustsLocalBudget(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "message": "quota", "errors": [{"reason": "quotaExceeded"}]}}`)
	}))
	defer server.Close()

	p := newTestYouTube(server.URL)
	outcome := p.Publish(context.Background(), &assets.Asset{
		Title:          "Headline",
		LocalVideoPath: stageVideo(t, "x"),
	})

	if outcome.Status != types.StatusRateLimited {
		t.Fatalf("expected rate limited, got %+v", outcome)
	}
	if p.quota.Remaining() != 0 {
		t.Fatalf("expected local budget exhausted, remaining %d", p.quota.Remaining())
	}
}

func TestYouTubeClassifiesFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   types.OutcomeStatus
	}{
		{"bad request", http.StatusBadRequest, `{"error": {"code": 400, "message": "bad metadata"}}`, types.StatusPermanent},
		{"throttled", http.StatusForbidden, `{"error": {"code": 403, "message": "slow down", "errors": [{"reason": "rateLimitExceeded"}]}}`, types.StatusRateLimited},
		{"server error", http.StatusServiceUnavailable, `backend unavailable`, types.StatusTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer server.Close()

			p := newTestYouTube(server.URL)
			outcome := p.Publish(context.Background(), &assets.Asset{
				Title:          "Headline",
				LocalVideoPath: stageVideo(t, "x"),
			})
			if outcome.Status != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, outcome)
			}
		})
	}
}

func TestYouTubeMissingVideoIsPermanent(t *testing.T) {
	p := newTestYouTube("http://unused")
	outcome := p.Publish(context.Background(), &assets.Asset{Title: "Headline"})
	if outcome.Status != types.StatusPermanent {
		t.Fatalf("expected permanent failure, got %+v", outcome)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
