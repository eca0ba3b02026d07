package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsreel/internal/assets"
	"newsreel/internal/cache"
	"newsreel/internal/ledger"
	"newsreel/internal/platforms"
	"newsreel/internal/types"
)

type fakePreparer struct {
	err      error
	cleaned  bool
	prepared int
}

func (f *fakePreparer) Prepare(ctx context.Context, article types.Article) (*assets.Asset, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.prepared++
	return &assets.Asset{Title: article.Title, Caption: "caption", ImageURL: "https://img/a.jpg"}, nil
}

func (f *fakePreparer) Cleanup(asset *assets.Asset) {
	f.cleaned = true
}

type fakePublisher struct {
	name    string
	outcome *types.Outcome
	hang    bool
	calls   int
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(ctx context.Context, asset *assets.Asset) *types.Outcome {
	f.calls++
	if f.hang {
		<-ctx.Done()
		return types.Transient("interrupted")
	}
	return f.outcome
}

type recordingLedger struct {
	ledger.Ledger
	recorded  []*types.AttemptRecord
	recordErr error
}

func (l *recordingLedger) Record(ctx context.Context, rec *types.AttemptRecord) error {
	l.recorded = append(l.recorded, rec)
	return l.recordErr
}

func testArticle() types.Article {
	return types.Article{
		Title:     "Markets rally on rate cut",
		SourceURL: "https://news.example.com/markets",
		Section:   "business",
	}
}

func TestProcessRecordsMixedOutcomes(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	seen := cache.NewIdentities(0)
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.Success("post-1")},
		&fakePublisher{name: "youtube", outcome: types.Permanent("rejected")},
		&fakePublisher{name: "discord", outcome: types.Skipped("platform disabled by configuration")},
	}

	c := New(prep, pubs, store, seen, false)
	item := c.Process(context.Background(), testArticle())

	if !item.OverallSuccess {
		t.Fatal("one platform success must mean overall success")
	}
	if len(store.recorded) != 1 {
		t.Fatalf("expected one record, got %d", len(store.recorded))
	}

	rec := store.recorded[0]
	if !rec.OverallSuccess || rec.Retryable {
		t.Fatalf("unexpected record flags: %+v", rec)
	}
	if rec.Platforms["instagram"].Status != types.StatusSuccess {
		t.Fatalf("instagram result lost: %+v", rec.Platforms["instagram"])
	}
	if rec.Platforms["youtube"].Status != types.StatusPermanent {
		t.Fatalf("youtube result lost: %+v", rec.Platforms["youtube"])
	}
	if rec.Platforms["discord"].Status != types.StatusSkipped {
		t.Fatalf("discord result lost: %+v", rec.Platforms["discord"])
	}

	if !seen.Has(item.Identity) {
		t.Fatal("processed identity should enter the process cache")
	}
	if !prep.cleaned {
		t.Fatal("asset should be cleaned up after the fanout")
	}
}

func TestProcessOnePlatformFailureDoesNotGateAnother(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	ig := &fakePublisher{name: "instagram", outcome: types.Permanent("bad token")}
	yt := &fakePublisher{name: "youtube", outcome: types.Success("vid-1")}

	c := New(prep, []platforms.Publisher{ig, yt}, store, cache.NewIdentities(0), false)
	item := c.Process(context.Background(), testArticle())

	if ig.calls != 1 || yt.calls != 1 {
		t.Fatalf("every platform gets exactly one attempt, got %d/%d", ig.calls, yt.calls)
	}
	if !item.OverallSuccess {
		t.Fatal("youtube success must not be masked by instagram failure")
	}
}

func TestProcessPrepFailureRecordsPermanentForAll(t *testing.T) {
	prep := &fakePreparer{err: errors.New("video host unreachable")}
	store := &recordingLedger{}
	seen := cache.NewIdentities(0)
	ig := &fakePublisher{name: "instagram", outcome: types.Success("post-1")}

	c := New(prep, []platforms.Publisher{ig}, store, seen, true)
	item := c.Process(context.Background(), testArticle())

	if ig.calls != 0 {
		t.Fatal("no platform may be attempted without a prepared asset")
	}
	if item.OverallSuccess {
		t.Fatal("prep failure cannot be an overall success")
	}
	if len(store.recorded) != 1 {
		t.Fatalf("prep failure must still be recorded, got %d records", len(store.recorded))
	}
	rec := store.recorded[0]
	if rec.Retryable {
		t.Fatal("prep failure is terminal, not retryable")
	}
	if rec.Platforms["instagram"].Status != types.StatusPermanent {
		t.Fatalf("expected permanent platform result, got %+v", rec.Platforms["instagram"])
	}
	if !seen.Has(item.Identity) {
		t.Fatal("terminal failure should enter the process cache")
	}
}

func TestProcessRetryableWhenAllRecoverable(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	seen := cache.NewIdentities(0)
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.RateLimited("throttled", time.Minute)},
		&fakePublisher{name: "youtube", outcome: types.Transient("backend 503")},
		&fakePublisher{name: "discord", outcome: types.Skipped("platform disabled by configuration")},
	}

	c := New(prep, pubs, store, seen, true)
	item := c.Process(context.Background(), testArticle())

	if !store.recorded[0].Retryable {
		t.Fatal("all-recoverable failure with retry enabled must be retryable")
	}
	if seen.Has(item.Identity) {
		t.Fatal("retryable identity must stay out of the process cache")
	}
}

func TestProcessRetryDisabledPinsRecoverableFailure(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	seen := cache.NewIdentities(0)
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.Transient("backend 503")},
	}

	c := New(prep, pubs, store, seen, false)
	item := c.Process(context.Background(), testArticle())

	if store.recorded[0].Retryable {
		t.Fatal("retry policy off means every record is terminal")
	}
	if !seen.Has(item.Identity) {
		t.Fatal("terminal record enters the process cache")
	}
}

func TestProcessPermanentFailurePinsRecord(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.Transient("backend 503")},
		&fakePublisher{name: "youtube", outcome: types.Permanent("rejected")},
	}

	c := New(prep, pubs, store, cache.NewIdentities(0), true)
	c.Process(context.Background(), testArticle())

	if store.recorded[0].Retryable {
		t.Fatal("a permanent failure on any platform pins the record")
	}
}

func TestProcessAllSkippedIsNotRetryable(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.Skipped("platform disabled by configuration")},
	}

	c := New(prep, pubs, store, cache.NewIdentities(0), true)
	c.Process(context.Background(), testArticle())

	if store.recorded[0].Retryable {
		t.Fatal("a pass with no real attempts is not retryable")
	}
}

func TestProcessHungPublisherDoesNotBlockSiblings(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{}
	hung := &fakePublisher{name: "instagram", hang: true}
	fast := &fakePublisher{name: "youtube", outcome: types.Success("vid-1")}

	c := New(prep, []platforms.Publisher{hung, fast}, store, cache.NewIdentities(0), false)
	c.publishTimeout = 50 * time.Millisecond

	start := time.Now()
	item := c.Process(context.Background(), testArticle())
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("fanout blocked on hung publisher for %s", elapsed)
	}

	if !item.OverallSuccess {
		t.Fatal("fast platform's success must survive the hung sibling")
	}
	if item.PerPlatform["instagram"].Status != types.StatusTransient {
		t.Fatalf("hung publisher should be recorded transient, got %+v", item.PerPlatform["instagram"])
	}
}

func TestProcessLedgerFailureIsNotFatal(t *testing.T) {
	prep := &fakePreparer{}
	store := &recordingLedger{recordErr: errors.New("disk full")}
	pubs := []platforms.Publisher{
		&fakePublisher{name: "instagram", outcome: types.Success("post-1")},
	}

	c := New(prep, pubs, store, cache.NewIdentities(0), false)
	item := c.Process(context.Background(), testArticle())

	if !item.OverallSuccess {
		t.Fatal("ledger write failure must not erase the publish result")
	}
}
