package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/types"
)

// NewsAPISource pulls top stories from an NYT-style JSON API, section by
// section in configured priority order.
type NewsAPISource struct {
	name       string
	baseURL    string
	apiKey     string
	sections   []string
	limit      int
	httpClient *http.Client
}

type newsAPIResponse struct {
	Results []newsAPIArticle `json:"results"`
}

type newsAPIArticle struct {
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	URL           string `json:"url"`
	Section       string `json:"section"`
	Byline        string `json:"byline"`
	PublishedDate string `json:"published_date"`
	Multimedia    []struct {
		URL    string `json:"url"`
		Format string `json:"format"`
		Type   string `json:"type"`
	} `json:"multimedia"`
}

func NewNewsAPISource(name string, settings map[string]interface{}) *NewsAPISource {
	sections := config.GetStringSlice(settings, "sections")
	if len(sections) == 0 {
		sections = []string{"business", "technology", "politics", "entertainment", "sports", "home"}
	}

	limit := config.GetInt(settings, "limit", 10)

	return &NewsAPISource{
		name:       name,
		baseURL:    config.GetString(settings, "base_url", "https://api.nytimes.com/svc/topstories/v2"),
		apiKey:     config.GetString(settings, "api_key", ""),
		sections:   sections,
		limit:      limit,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *NewsAPISource) Name() string {
	return s.name
}

// Fetch walks the configured sections in priority order and returns up to
// the per-section limit from each, keeping the upstream ordering. A section
// that fails is skipped; only a total failure surfaces as a FetchError.
func (s *NewsAPISource) Fetch(ctx context.Context) ([]types.Article, error) {
	var articles []types.Article
	seen := make(map[string]bool)
	var lastErr error
	failed := 0

	for _, section := range s.sections {
		sectionArticles, err := s.fetchSection(ctx, section)
		if err != nil {
			lastErr = err
			failed++
			continue
		}

		for _, art := range sectionArticles {
			if art.SourceURL == "" || seen[art.SourceURL] {
				continue
			}
			seen[art.SourceURL] = true
			articles = append(articles, art)
		}
	}

	if failed == len(s.sections) && lastErr != nil {
		return nil, types.NewFetchError(s.name, lastErr)
	}

	return articles, nil
}

func (s *NewsAPISource) fetchSection(ctx context.Context, section string) ([]types.Article, error) {
	endpoint := fmt.Sprintf("%s/%s.json?api-key=%s", s.baseURL, url.PathEscape(section), url.QueryEscape(s.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch section %s: %w", section, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("section %s: unexpected status code: %d", section, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var parsed newsAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal section %s: %w", section, err)
	}

	articles := make([]types.Article, 0, len(parsed.Results))
	for i, raw := range parsed.Results {
		if i >= s.limit {
			break
		}
		articles = append(articles, s.convert(raw, section))
	}

	return articles, nil
}

func (s *NewsAPISource) convert(raw newsAPIArticle, fallbackSection string) types.Article {
	art := types.Article{
		Title:     raw.Title,
		Abstract:  raw.Abstract,
		SourceURL: raw.URL,
		Section:   raw.Section,
		Byline:    raw.Byline,
	}
	if art.Section == "" {
		art.Section = fallbackSection
	}

	if ts, err := time.Parse(time.RFC3339, raw.PublishedDate); err == nil {
		art.PublishedAt = ts
	}

	for _, media := range raw.Multimedia {
		switch media.Type {
		case "image":
			if art.ImageURL == "" {
				art.ImageURL = media.URL
			}
		case "video":
			if art.VideoURL == "" {
				art.VideoURL = media.URL
			}
		}
	}

	return art
}
