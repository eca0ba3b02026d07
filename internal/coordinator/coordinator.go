package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsreel/internal/assets"
	"newsreel/internal/cache"
	"newsreel/internal/identity"
	"newsreel/internal/ledger"
	"newsreel/internal/platforms"
	"newsreel/internal/types"
)

const defaultPublishTimeout = 3 * time.Minute

// Coordinator runs one article through asset preparation, the platform
// fanout, and the ledger. Platforms are fully independent: each one gets
// exactly one delivery attempt per pass, and no platform's outcome gates
// another's.
type Coordinator struct {
	preparer       assets.Preparer
	publishers     []platforms.Publisher
	store          ledger.Ledger
	seen           *cache.Identities
	retryTransient bool
	publishTimeout time.Duration
}

func New(preparer assets.Preparer, publishers []platforms.Publisher, store ledger.Ledger, seen *cache.Identities, retryTransient bool) *Coordinator {
	return &Coordinator{
		preparer:       preparer,
		publishers:     publishers,
		store:          store,
		seen:           seen,
		retryTransient: retryTransient,
		publishTimeout: defaultPublishTimeout,
	}
}

// Process publishes one article to every configured platform and records the
// aggregate attempt. The attempt is recorded whatever happens: a preparation
// failure still produces a terminal record so the article is never fetched
// into a loop of repeated failures.
func (c *Coordinator) Process(ctx context.Context, article types.Article) *types.ItemOutcome {
	id := identity.Of(article.Title, article.SourceURL)

	slog.Info("Processing article", "identity", id, "title", article.Title, "section", article.Section)

	asset, err := c.preparer.Prepare(ctx, article)
	if err != nil {
		slog.Error("Asset preparation failed", "identity", id, "error", err)
		return c.finish(ctx, article, id, c.prepFailureOutcomes(err))
	}
	defer c.preparer.Cleanup(asset)

	return c.finish(ctx, article, id, c.fanout(ctx, asset))
}

// fanout delivers the asset to every platform concurrently. Each platform
// writes only its own slot, so a slow or hung publisher never blocks a
// sibling's attempt; one that outlives the per-call budget is recorded as a
// transient failure and left to finish in the background.
func (c *Coordinator) fanout(ctx context.Context, asset *assets.Asset) map[string]*types.Outcome {
	outcomes := make([]*types.Outcome, len(c.publishers))

	var wg sync.WaitGroup
	for i, pub := range c.publishers {
		wg.Add(1)
		go func(slot int, pub platforms.Publisher) {
			defer wg.Done()
			outcomes[slot] = c.publishOne(ctx, pub, asset)
		}(i, pub)
	}
	wg.Wait()

	byPlatform := make(map[string]*types.Outcome, len(c.publishers))
	for i, pub := range c.publishers {
		byPlatform[pub.Name()] = outcomes[i]
	}
	return byPlatform
}

func (c *Coordinator) publishOne(ctx context.Context, pub platforms.Publisher, asset *assets.Asset) *types.Outcome {
	callCtx, cancel := context.WithTimeout(ctx, c.publishTimeout)
	defer cancel()

	done := make(chan *types.Outcome, 1)
	go func() {
		done <- pub.Publish(callCtx, asset)
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-callCtx.Done():
		return types.Transient(fmt.Sprintf("publish did not finish within %s", c.publishTimeout))
	}
}

func (c *Coordinator) prepFailureOutcomes(err error) map[string]*types.Outcome {
	byPlatform := make(map[string]*types.Outcome, len(c.publishers))
	for _, pub := range c.publishers {
		byPlatform[pub.Name()] = types.Permanent(fmt.Sprintf("asset preparation failed: %v", err))
	}
	return byPlatform
}

// finish persists the attempt and settles the in-process dedup state. A
// ledger write failure is logged and swallowed: losing one record is better
// than failing a pass whose publishes already happened.
func (c *Coordinator) finish(ctx context.Context, article types.Article, id string, byPlatform map[string]*types.Outcome) *types.ItemOutcome {
	item := &types.ItemOutcome{
		Identity:    id,
		PerPlatform: byPlatform,
	}

	for _, outcome := range byPlatform {
		if outcome.IsSuccess() {
			item.OverallSuccess = true
			break
		}
	}

	retryable := c.isRetryable(item)

	rec := &types.AttemptRecord{
		Identity:       id,
		SourceURL:      article.SourceURL,
		Title:          article.Title,
		Section:        article.Section,
		OverallSuccess: item.OverallSuccess,
		Retryable:      retryable,
		Platforms:      make(map[string]types.PlatformResult, len(byPlatform)),
		CreatedAt:      time.Now(),
	}
	for name, outcome := range byPlatform {
		rec.Platforms[name] = types.PlatformResult{
			Status:     outcome.Status,
			ExternalID: outcome.ExternalID,
			Error:      outcome.Reason,
			Timestamp:  outcome.Timestamp,
		}
		logOutcome(id, name, outcome)
	}

	if err := c.store.Record(ctx, rec); err != nil {
		slog.Error("Failed to record attempt", "identity", id, "error", err)
	}

	if !retryable {
		c.seen.Add(id)
	}

	slog.Info("Attempt recorded",
		"identity", id,
		"overall_success", item.OverallSuccess,
		"retryable", retryable,
	)

	return item
}

func logOutcome(id, platform string, outcome *types.Outcome) {
	switch outcome.Status {
	case types.StatusSuccess:
		slog.Info("Published", "identity", id, "platform", platform, "external_id", outcome.ExternalID)
	case types.StatusRateLimited:
		slog.Info("Platform throttled", "identity", id, "platform", platform, "reason", outcome.Reason, "retry_after", outcome.RetryAfter)
	case types.StatusTransient:
		slog.Warn("Publish failed transiently", "identity", id, "platform", platform, "reason", outcome.Reason)
	case types.StatusPermanent:
		slog.Error("Publish failed permanently", "identity", id, "platform", platform, "reason", outcome.Reason)
	case types.StatusSkipped:
		slog.Debug("Platform skipped", "identity", id, "platform", platform, "reason", outcome.Reason)
	}
}

// isRetryable decides whether the record should stay invisible to the dedup
// check. Only an across-the-board recoverable failure qualifies, and only
// when the transient-retry policy is switched on; one success or one
// permanent failure pins the record forever.
func (c *Coordinator) isRetryable(item *types.ItemOutcome) bool {
	if !c.retryTransient || item.OverallSuccess {
		return false
	}

	attempted := 0
	for _, outcome := range item.PerPlatform {
		if outcome.Status == types.StatusSkipped {
			continue
		}
		attempted++
		if !outcome.Recoverable() {
			return false
		}
	}

	return attempted > 0
}
