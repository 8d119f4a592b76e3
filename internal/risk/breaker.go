package risk

import (
	"sync"
	"time"

	"mm_engine/internal/core"
)

// PauseBreaker is an idempotent trading halt switch with an optional
// cooldown. Pausing an already-paused breaker is a no-op; Resume before the
// cooldown elapses is rejected.
type PauseBreaker struct {
	mu       sync.RWMutex
	paused   bool
	reason   string
	pausedAt time.Time
	cooldown time.Duration
	logger   core.ILogger
}

// NewPauseBreaker creates a breaker with the given resume cooldown
func NewPauseBreaker(cooldown time.Duration, logger core.ILogger) *PauseBreaker {
	return &PauseBreaker{
		cooldown: cooldown,
		logger:   logger.WithField("component", "pause_breaker"),
	}
}

// Pause halts trading. Calling it while already paused changes nothing.
func (b *PauseBreaker) Pause(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.paused {
		return
	}
	b.paused = true
	b.reason = reason
	b.pausedAt = time.Now()
	b.logger.Warn("Trading paused", "reason", reason)
}

// Resume clears the pause once the cooldown has elapsed
func (b *PauseBreaker) Resume() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.paused {
		return
	}
	if time.Since(b.pausedAt) < b.cooldown {
		b.logger.Debug("Resume rejected, cooldown active",
			"remaining", (b.cooldown - time.Since(b.pausedAt)).String())
		return
	}
	b.paused = false
	b.reason = ""
	b.logger.Info("Trading resumed")
}

// IsPaused reports the current halt state
func (b *PauseBreaker) IsPaused() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.paused
}

// Reason returns the active pause reason, empty when not paused
func (b *PauseBreaker) Reason() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.reason
}
