package types

import (
	"time"
)

// Article is one candidate content unit discovered from an upstream source.
// Articles are transient: only their identity and attempt outcome are
// persisted, never the article itself.
type Article struct {
	Title       string
	SourceURL   string
	Abstract    string
	Section     string
	Byline      string
	PublishedAt time.Time

	// References to externally rendered media. ImageURL points at the
	// article's still image, VideoURL at a pre-rendered vertical video,
	// when the upstream provides one.
	ImageURL string
	VideoURL string
}

// OutcomeStatus is the normalized failure taxonomy every platform publisher
// must map its native errors onto.
type OutcomeStatus string

const (
	StatusSuccess     OutcomeStatus = "success"
	StatusRateLimited OutcomeStatus = "rate_limited"
	StatusTransient   OutcomeStatus = "transient_failure"
	StatusPermanent   OutcomeStatus = "permanent_failure"
	StatusSkipped     OutcomeStatus = "skipped"
)

// Outcome is the result of exactly one delivery attempt to one platform.
type Outcome struct {
	Status     OutcomeStatus
	ExternalID string
	Reason     string
	RetryAfter time.Duration
	Timestamp  time.Time
}

func Success(externalID string) *Outcome {
	return &Outcome{Status: StatusSuccess, ExternalID: externalID, Timestamp: time.Now()}
}

func RateLimited(reason string, retryAfter time.Duration) *Outcome {
	return &Outcome{Status: StatusRateLimited, Reason: reason, RetryAfter: retryAfter, Timestamp: time.Now()}
}

func Transient(reason string) *Outcome {
	return &Outcome{Status: StatusTransient, Reason: reason, Timestamp: time.Now()}
}

func Permanent(reason string) *Outcome {
	return &Outcome{Status: StatusPermanent, Reason: reason, Timestamp: time.Now()}
}

func Skipped(reason string) *Outcome {
	return &Outcome{Status: StatusSkipped, Reason: reason, Timestamp: time.Now()}
}

func (o *Outcome) IsSuccess() bool {
	return o.Status == StatusSuccess
}

// Recoverable reports whether a later attempt with the same asset could
// plausibly succeed. Skipped does not count: a disabled platform stays
// disabled until the configuration changes.
func (o *Outcome) Recoverable() bool {
	return o.Status == StatusRateLimited || o.Status == StatusTransient
}

// ItemOutcome aggregates one coordinator pass over one article.
type ItemOutcome struct {
	Identity       string
	PerPlatform    map[string]*Outcome
	OverallSuccess bool
}

// PlatformResult is the persisted form of an Outcome.
type PlatformResult struct {
	Status     OutcomeStatus
	ExternalID string
	Error      string
	Timestamp  time.Time
}

// AttemptRecord is the durable outcome of one article's processing, keyed by
// identity with upsert semantics: a replay overwrites, never duplicates.
type AttemptRecord struct {
	Identity       string
	SourceURL      string
	Title          string
	Section        string
	OverallSuccess bool
	// Retryable marks records the eligibility check ignores, so the article
	// may be attempted again on a later cycle. Only ever set when the
	// transient-retry policy is enabled.
	Retryable bool
	Platforms map[string]PlatformResult
	CreatedAt time.Time
}
