package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"newsreel/internal/assets"
	"newsreel/internal/config"
	"newsreel/internal/types"
)

// Graph API error codes that mean application-level throttling rather than a
// broken request: code 4 is the application request limit, code 9 with
// subcode 2207051 is the content publishing limit.
const (
	graphCodeRequestLimit      = 4
	graphCodePublishingLimit   = 9
	graphSubcodePublishingHit  = 2207051
	defaultGraphAPIBase        = "https://graph.facebook.com/v21.0"
	defaultInstagramPollEvery  = 5 * time.Second
	defaultInstagramPollBudget = 24
)

// Instagram publishes reels (or single images) through the Graph API's
// two-step create-then-publish protocol.
type Instagram struct {
	name        string
	accountID   string
	accessToken string
	baseURL     string
	httpClient  *http.Client
	limiter     *rate.Limiter
	pollEvery   time.Duration
	pollBudget  int
}

func NewInstagram(cfg config.InstagramConfig) *Instagram {
	postsPerHour := cfg.PostsPerHour
	if postsPerHour <= 0 {
		postsPerHour = 25
	}

	return &Instagram{
		name:        "instagram",
		accountID:   cfg.AccountID,
		accessToken: cfg.AccessToken,
		baseURL:     defaultGraphAPIBase,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Every(time.Hour/time.Duration(postsPerHour)), 1),
		pollEvery:   defaultInstagramPollEvery,
		pollBudget:  defaultInstagramPollBudget,
	}
}

func (p *Instagram) Name() string {
	return p.name
}

func (p *Instagram) Publish(ctx context.Context, asset *assets.Asset) *types.Outcome {
	if asset.VideoURL == "" && asset.ImageURL == "" {
		return types.Permanent("no publishable media for instagram")
	}

	reservation := p.limiter.Reserve()
	if delay := reservation.Delay(); delay > 0 {
		reservation.Cancel()
		return types.RateLimited("local posting budget exhausted", delay)
	}

	creationID, failure := p.createContainer(ctx, asset)
	if failure != nil {
		return failure
	}

	if failure := p.waitForReady(ctx, creationID); failure != nil {
		return failure
	}

	return p.publishContainer(ctx, creationID)
}

func (p *Instagram) createContainer(ctx context.Context, asset *assets.Asset) (string, *types.Outcome) {
	form := url.Values{}
	form.Set("access_token", p.accessToken)
	form.Set("caption", asset.Caption)
	if asset.VideoURL != "" {
		form.Set("media_type", "REELS")
		form.Set("video_url", asset.VideoURL)
		form.Set("share_to_feed", "true")
	} else {
		form.Set("image_url", asset.ImageURL)
	}

	body, failure := p.postForm(ctx, fmt.Sprintf("%s/%s/media", p.baseURL, p.accountID), form)
	if failure != nil {
		return "", failure
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
		return "", types.Permanent("media container response missing id")
	}

	return parsed.ID, nil
}

// waitForReady polls the container until the platform reports it processed.
// A container still in progress after the poll budget is published anyway;
// the platform accepts slightly-early publish calls. A status-check failure
// is tolerated the same way: keep waiting rather than abandoning the pass.
func (p *Instagram) waitForReady(ctx context.Context, creationID string) *types.Outcome {
	for attempt := 0; attempt < p.pollBudget; attempt++ {
		status, err := p.containerStatus(ctx, creationID)
		if err == nil {
			switch status {
			case "FINISHED":
				return nil
			case "ERROR":
				return types.Permanent("media container processing failed")
			}
		}

		select {
		case <-ctx.Done():
			return types.Transient("timed out waiting for media processing")
		case <-time.After(p.pollEvery):
		}
	}

	return nil
}

func (p *Instagram) containerStatus(ctx context.Context, creationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", p.baseURL, creationID, url.QueryEscape(p.accessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status check returned %d", resp.StatusCode)
	}

	var parsed struct {
		StatusCode string `json:"status_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}

	return parsed.StatusCode, nil
}

func (p *Instagram) publishContainer(ctx context.Context, creationID string) *types.Outcome {
	form := url.Values{}
	form.Set("creation_id", creationID)
	form.Set("access_token", p.accessToken)

	body, failure := p.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", p.baseURL, p.accountID), form)
	if failure != nil {
		return failure
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
		return types.Permanent("publish response missing id")
	}

	return types.Success(parsed.ID)
}

func (p *Instagram) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, *types.Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, types.Permanent(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("graph api call failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.Transient(fmt.Sprintf("failed to read graph api response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyGraphFailure(resp.StatusCode, body)
	}

	return body, nil
}

type graphErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

func classifyGraphFailure(statusCode int, body []byte) *types.Outcome {
	var parsed graphErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		code, subcode := parsed.Error.Code, parsed.Error.Subcode
		if code == graphCodeRequestLimit || (code == graphCodePublishingLimit && subcode == graphSubcodePublishingHit) {
			return types.RateLimited(fmt.Sprintf("graph api throttled: %s", parsed.Error.Message), 0)
		}
		if statusCode < http.StatusInternalServerError {
			return types.Permanent(fmt.Sprintf("graph api rejected request (code %d): %s", code, parsed.Error.Message))
		}
	}

	if statusCode >= http.StatusInternalServerError {
		return types.Transient(fmt.Sprintf("graph api returned %d", statusCode))
	}

	return types.Permanent(fmt.Sprintf("graph api returned %d: %s", statusCode, body))
}
