package evaluator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alert-engine/internal/rules"
)

// RuleLoader reads the persisted rule set. Implemented by the database layer.
type RuleLoader interface {
	// ListEnabledRules returns every enabled rule.
	ListEnabledRules(ctx context.Context) ([]*rules.Rule, error)

	// LatestRuleChange returns the most recent rule updated_at watermark.
	// The zero time means no rules exist.
	LatestRuleChange(ctx context.Context) (time.Time, error)
}

// Reloader polls the store for rule changes and hot-swaps the rule set when
// the watermark moves. Rule mutations through the HTTP API also trigger an
// immediate reload via ReloadNow.
type Reloader struct {
	loader       RuleLoader
	set          *RuleSet
	pollInterval time.Duration

	// mu serializes the watermark check-and-swap between the poll goroutine
	// and ReloadNow callers.
	mu        sync.Mutex
	watermark time.Time
}

// NewReloader creates a reloader with the given dependencies.
func NewReloader(loader RuleLoader, set *RuleSet, pollInterval time.Duration) *Reloader {
	return &Reloader{
		loader:       loader,
		set:          set,
		pollInterval: pollInterval,
	}
}

// Start performs the initial load and begins polling for changes in a
// background goroutine. The goroutine exits when ctx is cancelled.
func (r *Reloader) Start(ctx context.Context) error {
	watermark, err := r.loader.LatestRuleChange(ctx)
	if err != nil {
		return err
	}
	loaded, err := r.loader.ListEnabledRules(ctx)
	if err != nil {
		return err
	}
	r.set.Replace(loaded)
	r.mu.Lock()
	r.watermark = watermark
	r.mu.Unlock()

	slog.Info("Loaded initial rule set",
		"rules_count", len(loaded),
		"poll_interval", r.pollInterval,
	)

	go r.pollLoop(ctx)
	return nil
}

// pollLoop continuously polls the store for rule changes.
func (r *Reloader) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Rule poller stopped")
			return
		case <-ticker.C:
			if err := r.checkAndReload(ctx); err != nil {
				slog.Error("Failed to check/reload rules", "error", err)
				// Continue polling even if reload fails
			}
		}
	}
}

// checkAndReload reloads the rule set if the watermark has moved. The lock
// spans the whole check-and-swap so a poll tick and a ReloadNow caller cannot
// interleave their watermark reads and writes.
func (r *Reloader) checkAndReload(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	watermark, err := r.loader.LatestRuleChange(ctx)
	if err != nil {
		return err
	}
	if !watermark.After(r.watermark) {
		return nil // No change
	}

	loaded, err := r.loader.ListEnabledRules(ctx)
	if err != nil {
		return err
	}

	r.set.Replace(loaded)
	r.watermark = watermark

	slog.Info("Rule set reloaded",
		"rules_count", len(loaded),
		"watermark", watermark,
	)
	return nil
}

// ReloadNow forces an immediate reload. Called after a rule mutation so the
// next evaluation sees the change without waiting for the poll interval.
func (r *Reloader) ReloadNow(ctx context.Context) error {
	return r.checkAndReload(ctx)
}
