package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsreel/internal/identity"
	"newsreel/internal/sources"
	"newsreel/internal/types"
)

// Processor runs one eligible article through preparation, the platform
// fanout, and the ledger.
type Processor interface {
	Process(ctx context.Context, article types.Article) *types.ItemOutcome
}

type Config struct {
	Interval         time.Duration
	MaxPerCycle      int
	FailureThreshold int
	BackoffExtension time.Duration
}

// Scheduler drives the discovery loop: fetch candidates, filter them through
// the dedup tracker, hand at most MaxPerCycle of them to the processor, then
// sleep until the next cycle. Cycles that produce nothing but failures
// stretch the sleep; the first success snaps it back to the base interval.
type Scheduler struct {
	sources   []sources.Source
	tracker   *identity.Tracker
	processor Processor
	cfg       Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	// consecutive cycles that attempted at least one article and succeeded
	// on none
	failedCycles int
}

func New(srcs []sources.Source, tracker *identity.Tracker, processor Processor, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = 1
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.BackoffExtension <= 0 {
		cfg.BackoffExtension = 5 * time.Minute
	}

	return &Scheduler{
		sources:   srcs,
		tracker:   tracker,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
	}
}

// Run executes cycles until the context is cancelled or Stop is called. The
// first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	slog.Info("Scheduler starting", "interval", s.cfg.Interval, "max_per_cycle", s.cfg.MaxPerCycle)

	for {
		wait := s.runCycle(ctx)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.stopCh:
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// Stop ends the loop after the in-flight cycle finishes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

// runCycle performs one discovery pass and returns how long to sleep before
// the next one.
func (s *Scheduler) runCycle(ctx context.Context) time.Duration {
	started := time.Now()
	candidates := s.fetchCandidates(ctx)

	attempted, succeeded, skipped := 0, 0, 0
	platformSuccesses := make(map[string]int)
	for _, article := range candidates {
		if attempted >= s.cfg.MaxPerCycle {
			break
		}
		if ctx.Err() != nil {
			break
		}

		eligible, err := s.tracker.IsEligible(ctx, article)
		if err != nil {
			slog.Warn("Eligibility check failed, skipping candidate", "url", article.SourceURL, "error", err)
			skipped++
			continue
		}
		if !eligible {
			skipped++
			continue
		}

		attempted++
		item := s.processor.Process(ctx, article)
		if item.OverallSuccess {
			succeeded++
		}
		for platform, outcome := range item.PerPlatform {
			if outcome.IsSuccess() {
				platformSuccesses[platform]++
			}
		}
	}

	wait := s.settle(attempted, succeeded)

	slog.Info("Cycle completed",
		"candidates", len(candidates),
		"attempted", attempted,
		"succeeded", succeeded,
		"skipped", skipped,
		"platform_successes", platformSuccesses,
		"duration", time.Since(started).Round(time.Millisecond),
		"next_run", time.Now().Add(wait).Format(time.RFC3339),
	)

	return wait
}

// fetchCandidates gathers articles from every source. A failed source is
// logged and contributes nothing; the cycle continues with what the others
// returned.
func (s *Scheduler) fetchCandidates(ctx context.Context) []types.Article {
	var candidates []types.Article
	for _, src := range s.sources {
		articles, err := src.Fetch(ctx)
		if err != nil {
			slog.Warn("Source fetch failed", "source", src.Name(), "error", err)
			continue
		}
		candidates = append(candidates, articles...)
	}
	return candidates
}

// settle updates the failure streak and returns the next wait. Each cycle at
// or past the threshold adds one more extension on top of the base interval.
// A cycle that attempted nothing neither extends nor resets the streak.
func (s *Scheduler) settle(attempted, succeeded int) time.Duration {
	if attempted == 0 {
		return s.waitFor(s.failedCycles)
	}

	if succeeded > 0 {
		s.failedCycles = 0
		return s.cfg.Interval
	}

	s.failedCycles++
	wait := s.waitFor(s.failedCycles)
	if s.failedCycles >= s.cfg.FailureThreshold {
		slog.Warn("Consecutive failures extending wait",
			"failed_cycles", s.failedCycles,
			"wait", wait,
		)
	}
	return wait
}

func (s *Scheduler) waitFor(failedCycles int) time.Duration {
	if failedCycles < s.cfg.FailureThreshold {
		return s.cfg.Interval
	}
	extra := time.Duration(failedCycles-s.cfg.FailureThreshold+1) * s.cfg.BackoffExtension
	return s.cfg.Interval + extra
}
