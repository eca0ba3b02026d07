package assets

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"context"
)

// MediaHost uploads a local media file to a throwaway hosting service so a
// platform that only accepts publicly reachable URLs can fetch it.
type MediaHost struct {
	uploadURL  string
	httpClient *http.Client
}

type mediaHostResponse struct {
	Status string `json:"status"`
	Data   struct {
		URL string `json:"url"`
	} `json:"data"`
}

func NewMediaHost(uploadURL string) *MediaHost {
	return &MediaHost{
		uploadURL:  uploadURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Upload posts the file as multipart form data and returns the direct
// download URL.
func (h *MediaHost) Upload(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, file); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.uploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("media host upload failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("media host returned status %d: %s", resp.StatusCode, body)
	}

	var parsed mediaHostResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}
	if parsed.Status != "success" || parsed.Data.URL == "" {
		return "", fmt.Errorf("media host rejected upload: %s", body)
	}

	return directDownloadURL(parsed.Data.URL), nil
}

// directDownloadURL rewrites the host's landing-page URL into the direct
// file link the platform fetcher needs.
func directDownloadURL(pageURL string) string {
	return strings.Replace(pageURL, "tmpfiles.org/", "tmpfiles.org/dl/", 1)
}
