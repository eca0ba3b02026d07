package platforms

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"newsreel/internal/assets"
	"newsreel/internal/types"
)

func TestClassifyDiscordFailure(t *testing.T) {
	rateLimited := &discordgo.RateLimitError{
		RateLimit: &discordgo.RateLimit{
			TooManyRequests: &discordgo.TooManyRequests{
				Message:    "You are being rate limited.",
				RetryAfter: 2 * time.Second,
			},
			URL: "https://discord.com/api/v9/channels/1/messages",
		},
	}

	cases := []struct {
		name string
		err  error
		want types.OutcomeStatus
	}{
		{"rate limited", rateLimited, types.StatusRateLimited},
		{
			"server error",
			&discordgo.RESTError{
				Response:     &http.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"},
				ResponseBody: []byte("upstream error"),
			},
			types.StatusTransient,
		},
		{
			"client error",
			&discordgo.RESTError{
				Response:     &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
				ResponseBody: []byte("missing permissions"),
			},
			types.StatusPermanent,
		},
		{"network error", errors.New("dial tcp: connection refused"), types.StatusTransient},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := classifyDiscordFailure(tc.err)
			if outcome.Status != tc.want {
				t.Fatalf("expected %s, got %+v", tc.want, outcome)
			}
		})
	}
}

func TestClassifyDiscordRateLimitCarriesRetryAfter(t *testing.T) {
	err := &discordgo.RateLimitError{
		RateLimit: &discordgo.RateLimit{
			TooManyRequests: &discordgo.TooManyRequests{
				Message:    "You are being rate limited.",
				RetryAfter: 3 * time.Second,
			},
		},
	}

	outcome := classifyDiscordFailure(err)
	if outcome.RetryAfter != 3*time.Second {
		t.Fatalf("expected retry-after carried through, got %s", outcome.RetryAfter)
	}
}

func TestDisabledPublisherSkips(t *testing.T) {
	p := NewDisabled("instagram")
	outcome := p.Publish(context.Background(), &assets.Asset{Caption: "c"})
	if outcome.Status != types.StatusSkipped {
		t.Fatalf("expected skipped, got %+v", outcome)
	}
	if p.Name() != "instagram" {
		t.Fatalf("unexpected name %q", p.Name())
	}
}
