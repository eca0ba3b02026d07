package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"newsreel/internal/cache"
	"newsreel/internal/types"
)

// Of derives the stable fingerprint of an article from its title and source
// URL. Any change to either field yields a different identity: republishing
// with a corrected title is a new item, never merged with a prior attempt.
func Of(title, sourceURL string) string {
	normalized := strings.TrimSpace(title) + "\n" + strings.TrimSpace(sourceURL)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// LedgerReader is the read path the tracker needs from the attempt ledger.
type LedgerReader interface {
	// Exists reports whether a terminal attempt record matches either the
	// identity or the raw source URL. The dual-key check covers records
	// written before identities were derived.
	Exists(ctx context.Context, identity, sourceURL string) (bool, error)
}

// Tracker answers whether a candidate article should be processed. It is a
// pure lookup against the process cache and the ledger's read path.
type Tracker struct {
	ledger LedgerReader
	seen   *cache.Identities
}

func NewTracker(ledger LedgerReader, seen *cache.Identities) *Tracker {
	return &Tracker{ledger: ledger, seen: seen}
}

func (t *Tracker) IdentityOf(article types.Article) string {
	return Of(article.Title, article.SourceURL)
}

// IsEligible returns false for any article whose identity or source URL has
// already been attempted. A ledger read failure makes the article ineligible
// for this cycle rather than risking a duplicate publish.
func (t *Tracker) IsEligible(ctx context.Context, article types.Article) (bool, error) {
	id := t.IdentityOf(article)

	if t.seen.Has(id) {
		return false, nil
	}

	exists, err := t.ledger.Exists(ctx, id, article.SourceURL)
	if err != nil {
		return false, err
	}

	return !exists, nil
}
