package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"newsreel/internal/assets"
	"newsreel/internal/config"
	"newsreel/internal/types"
)

const (
	// One video insert costs 1600 of the 10000 default daily quota units.
	youtubeUploadCost = 1600

	defaultYouTubeUploadBase = "https://www.googleapis.com/upload/youtube/v3"
	youtubeTitleLimit        = 100
	youtubeCategoryNews      = "25"
)

// YouTube publishes staged videos as Shorts through the resumable upload
// protocol: initiate a session with the metadata, then PUT the bytes.
type YouTube struct {
	name        string
	accessToken string
	uploadBase  string
	httpClient  *http.Client
	quota       *QuotaLedger
	privacy     string
}

func NewYouTube(cfg config.YouTubeConfig) *YouTube {
	privacy := cfg.Privacy
	if privacy == "" {
		privacy = "public"
	}

	return &YouTube{
		name:        "youtube",
		accessToken: cfg.AccessToken,
		uploadBase:  defaultYouTubeUploadBase,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		quota:       NewQuotaLedger(cfg.DailyQuota),
		privacy:     privacy,
	}
}

func (p *YouTube) Name() string {
	return p.name
}

func (p *YouTube) Publish(ctx context.Context, asset *assets.Asset) *types.Outcome {
	if asset.LocalVideoPath == "" {
		return types.Permanent("no staged video for youtube")
	}

	if !p.quota.TryReserve(youtubeUploadCost) {
		return types.RateLimited("daily upload quota exhausted", p.quota.UntilReset())
	}

	uploadURL, failure := p.initiateUpload(ctx, asset)
	if failure != nil {
		return failure
	}

	return p.uploadVideo(ctx, uploadURL, asset.LocalVideoPath)
}

func (p *YouTube) initiateUpload(ctx context.Context, asset *assets.Asset) (string, *types.Outcome) {
	metadata := map[string]interface{}{
		"snippet": map[string]interface{}{
			"title":       truncateTitle(asset.Title),
			"description": shortsDescription(asset.Caption),
			"tags":        []string{"news", "shorts", "breaking news"},
			"categoryId":  youtubeCategoryNews,
		},
		"status": map[string]interface{}{
			"privacyStatus":           p.privacy,
			"selfDeclaredMadeForKids": false,
		},
	}

	payload, err := json.Marshal(metadata)
	if err != nil {
		return "", types.Permanent(fmt.Sprintf("failed to encode upload metadata: %v", err))
	}

	endpoint := fmt.Sprintf("%s/videos?uploadType=resumable&part=snippet,status", p.uploadBase)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.Permanent(fmt.Sprintf("failed to build upload request: %v", err))
	}
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Upload-Content-Type", "video/mp4")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", types.Transient(fmt.Sprintf("upload initiation failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", p.classifyFailure(resp.StatusCode, body)
	}

	uploadURL := resp.Header.Get("Location")
	if uploadURL == "" {
		return "", types.Transient("upload session missing location header")
	}

	return uploadURL, nil
}

func (p *YouTube) uploadVideo(ctx context.Context, uploadURL, path string) *types.Outcome {
	file, err := os.Open(path)
	if err != nil {
		return types.Permanent(fmt.Sprintf("failed to open staged video: %v", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return types.Permanent(fmt.Sprintf("failed to stat staged video: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return types.Permanent(fmt.Sprintf("failed to build upload request: %v", err))
	}
	req.Header.Set("Content-Type", "video/mp4")
	req.ContentLength = info.Size()

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return types.Transient(fmt.Sprintf("video upload failed: %v", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.Transient(fmt.Sprintf("failed to read upload response: %v", err))
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return p.classifyFailure(resp.StatusCode, body)
	}

	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.ID == "" {
		return types.Permanent("upload response missing video id")
	}

	return types.Success(parsed.ID)
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (p *YouTube) classifyFailure(statusCode int, body []byte) *types.Outcome {
	var parsed youtubeErrorResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, apiErr := range parsed.Error.Errors {
			switch apiErr.Reason {
			case "quotaExceeded", "dailyLimitExceeded":
				// The remote daily budget is gone; stop burning local
				// reservations on calls that cannot succeed today.
				p.quota.Exhaust()
				return types.RateLimited(fmt.Sprintf("youtube quota exceeded: %s", parsed.Error.Message), p.quota.UntilReset())
			case "rateLimitExceeded", "userRateLimitExceeded":
				return types.RateLimited(fmt.Sprintf("youtube throttled: %s", parsed.Error.Message), 0)
			}
		}
		if statusCode < http.StatusInternalServerError {
			return types.Permanent(fmt.Sprintf("youtube rejected upload (code %d): %s", parsed.Error.Code, parsed.Error.Message))
		}
	}

	if statusCode >= http.StatusInternalServerError {
		return types.Transient(fmt.Sprintf("youtube returned %d", statusCode))
	}

	return types.Permanent(fmt.Sprintf("youtube returned %d: %s", statusCode, body))
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= youtubeTitleLimit {
		return title
	}
	return string(runes[:youtubeTitleLimit-3]) + "..."
}

func shortsDescription(caption string) string {
	if strings.Contains(strings.ToLower(caption), "#shorts") {
		return caption
	}
	return caption + "\n\n#Shorts"
}
