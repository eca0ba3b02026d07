package sources

import (
	"context"
	"fmt"

	"newsreel/internal/config"
	"newsreel/internal/types"
)

// Source fetches candidate articles in upstream-provided order. The
// scheduler consumes the slice sequentially, so ordering is priority.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]types.Article, error)
}

// Build constructs every enabled source from configuration.
func Build(configs map[string]config.SourceConfig) ([]Source, error) {
	var result []Source

	for name, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		switch cfg.Type {
		case "newsapi":
			result = append(result, NewNewsAPISource(name, cfg.Settings))
		case "rss":
			result = append(result, NewRSSSource(name, cfg.Settings))
		default:
			return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
		}
	}

	return result, nil
}
