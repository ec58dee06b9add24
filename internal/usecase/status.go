// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/talentsift/talentsift/internal/domain"
)

// StatusTracker is the owned store of per-job pipeline progress. It replaces
// a process-global map with an explicit lifecycle: Start claims a key for one
// run, Advance/Fail/Complete mutate it, and a janitor evicts terminal entries
// after a TTL. An absent key reads as StageIdle.
type StatusTracker struct {
	mu      sync.Mutex
	entries map[string]*statusEntry
	ttl     time.Duration
	now     func() time.Time
}

type statusEntry struct {
	status domain.ProcessingStatus
	active bool
}

// NewStatusTracker constructs a tracker whose terminal entries live for ttl
// after completion.
func NewStatusTracker(ttl time.Duration) *StatusTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &StatusTracker{
		entries: make(map[string]*statusEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Start claims the key for a fresh pipeline run. It fails with ErrConflict
// while a run is still active for the key; a terminal entry is re-initialized
// with a new StartedAt and the first real stage.
func (t *StatusTracker) Start(key string, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok && e.active {
		return fmt.Errorf("%w: pipeline already running for %s", domain.ErrConflict, key)
	}
	now := t.now().UTC()
	t.entries[key] = &statusEntry{
		status: domain.ProcessingStatus{
			Stage:     domain.StageUploading,
			Total:     total,
			StartedAt: now,
			UpdatedAt: now,
		},
		active: true,
	}
	return nil
}

// Advance moves the run forward. Stage regressions are ignored (the stage is
// a high-water mark) but message and progress are always updated, so a
// per-item loop can keep reporting while the stage stays put.
func (t *StatusTracker) Advance(key string, stage domain.Stage, message string, current, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok || !e.active {
		slog.Warn("status advance on inactive key", slog.String("key", key), slog.String("stage", string(stage)))
		return
	}
	newOrd, okNew := stage.Ordinal()
	curOrd, _ := e.status.Stage.Ordinal()
	if okNew && newOrd > curOrd {
		e.status.Stage = stage
	}
	e.status.Message = message
	if current >= e.status.Current {
		e.status.Current = current
	}
	if total > 0 {
		e.status.Total = total
	}
	e.status.UpdatedAt = t.now().UTC()
}

// SetReport records the per-item outcomes of the run on the status entry so
// they survive into the terminal snapshot. Call it before Complete or Fail.
func (t *StatusTracker) SetReport(key string, analyzed, skipped int, errs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok || !e.active {
		return
	}
	e.status.Analyzed = analyzed
	e.status.Skipped = skipped
	e.status.Errors = errs
	e.status.UpdatedAt = t.now().UTC()
}

// Fail terminates the run with an error message.
func (t *StatusTracker) Fail(key, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return
	}
	now := t.now().UTC()
	e.status.Stage = domain.StageError
	e.status.Error = errMsg
	e.status.UpdatedAt = now
	e.status.CompletedAt = &now
	e.active = false
}

// Complete terminates the run successfully.
func (t *StatusTracker) Complete(key, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return
	}
	now := t.now().UTC()
	e.status.Stage = domain.StageComplete
	e.status.Message = message
	e.status.Current = e.status.Total
	e.status.UpdatedAt = now
	e.status.CompletedAt = &now
	e.active = false
}

// Get returns the current status snapshot; an absent key reads as idle.
func (t *StatusTracker) Get(key string) domain.ProcessingStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[key]; ok {
		return e.status
	}
	return domain.ProcessingStatus{Stage: domain.StageIdle}
}

// Release drops the entry for a key regardless of TTL. Terminal entries
// normally age out through the janitor; Release is for callers that know the
// key is gone for good, such as job deletion.
func (t *StatusTracker) Release(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// RunJanitor evicts terminal entries older than the TTL every interval until
// ctx is done. Run it in its own goroutine.
func (t *StatusTracker) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.evict()
		}
	}
}

func (t *StatusTracker) evict() {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-t.ttl)
	for k, e := range t.entries {
		if e.status.Stage.Terminal() && e.status.CompletedAt != nil && e.status.CompletedAt.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}
