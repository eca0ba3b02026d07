package sources

import (
	"context"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"newsreel/internal/config"
	"newsreel/internal/types"
)

var htmlStripper = bluemonday.StrictPolicy()

// RSSSource pulls candidate articles from one or more feeds, preserving each
// feed's item order.
type RSSSource struct {
	name     string
	feedURLs []string
	section  string
	maxItems int
	parser   *gofeed.Parser
}

func NewRSSSource(name string, settings map[string]interface{}) *RSSSource {
	return &RSSSource{
		name:     name,
		feedURLs: config.GetStringSlice(settings, "feeds"),
		section:  config.GetString(settings, "section", "news"),
		maxItems: config.GetInt(settings, "max_items", 10),
		parser:   gofeed.NewParser(),
	}
}

func (s *RSSSource) Name() string {
	return s.name
}

func (s *RSSSource) Fetch(ctx context.Context) ([]types.Article, error) {
	var articles []types.Article
	var lastErr error
	failed := 0

	for _, feedURL := range s.feedURLs {
		feed, err := s.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			lastErr = err
			failed++
			continue
		}

		limit := s.maxItems
		if limit > len(feed.Items) {
			limit = len(feed.Items)
		}

		for i := 0; i < limit; i++ {
			articles = append(articles, s.convert(feed.Items[i]))
		}
	}

	if failed == len(s.feedURLs) && lastErr != nil {
		return nil, types.NewFetchError(s.name, lastErr)
	}

	return articles, nil
}

func (s *RSSSource) convert(item *gofeed.Item) types.Article {
	art := types.Article{
		Title:     cleanText(item.Title),
		Abstract:  cleanText(item.Description),
		SourceURL: item.Link,
		Section:   s.section,
	}

	if len(item.Categories) > 0 {
		art.Section = strings.ToLower(item.Categories[0])
	}
	if item.Author != nil {
		art.Byline = item.Author.Name
	}
	if item.PublishedParsed != nil {
		art.PublishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		art.PublishedAt = *item.UpdatedParsed
	}
	if item.Image != nil {
		art.ImageURL = item.Image.URL
	}
	for _, enclosure := range item.Enclosures {
		switch {
		case strings.HasPrefix(enclosure.Type, "image/") && art.ImageURL == "":
			art.ImageURL = enclosure.URL
		case strings.HasPrefix(enclosure.Type, "video/") && art.VideoURL == "":
			art.VideoURL = enclosure.URL
		}
	}

	return art
}

func cleanText(raw string) string {
	stripped := htmlStripper.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
