package ledger

import (
	"context"
	"fmt"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/types"
)

// Ledger is the durable store of per-article attempt outcomes. It is the
// authoritative deduplication record: every processed article, success or
// total failure, ends up here exactly once.
type Ledger interface {
	// Record upserts the attempt keyed by identity. Replaying the same
	// identity overwrites the previous record, never duplicates it.
	Record(ctx context.Context, rec *types.AttemptRecord) error
	// Exists reports whether a non-retryable record matches the identity or
	// the raw source URL.
	Exists(ctx context.Context, identity, sourceURL string) (bool, error)
	Get(ctx context.Context, identity string) (*types.AttemptRecord, error)
	Stats(ctx context.Context) (*Stats, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
	Close() error
}

// Stats summarizes the ledger for the operational endpoint.
type Stats struct {
	TotalAttempts     int            `json:"total_attempts"`
	Successes         int            `json:"successes"`
	Sections          map[string]int `json:"sections"`
	PlatformSuccesses map[string]int `json:"platform_successes"`
}

var factoryFuncs = map[string]func(string) (Ledger, error){}

func RegisterFactory(storageType string, fn func(string) (Ledger, error)) {
	factoryFuncs[storageType] = fn
}

func New(ctx context.Context, cfg config.StorageConfig) (Ledger, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "sqlite"
	}

	fn, exists := factoryFuncs[storageType]
	if !exists {
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}

	return fn(cfg.Path)
}
