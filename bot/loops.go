package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"susninja-bot/internal/metrics"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// runLoop calls step every interval until ctx is cancelled. A panicking step
// is logged and the loop waits backoff before the next attempt.
func runLoop(ctx context.Context, name string, interval, backoff time.Duration, step func()) {
	logger := log.With().Str("component", name).Logger()
	logger.Info().Dur("interval", interval).Msg("Loop started")

	wait := interval
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Loop stopped")
			return
		case <-time.After(wait):
		}

		if err := safeStep(step); err != nil {
			logger.Error().Err(err).Dur("backoff", backoff).Msg("Loop iteration failed")
			sentry.CaptureException(err)
			wait = backoff
			continue
		}
		wait = interval
	}
}

func safeStep(step func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	step()
	return nil
}

func (b *Bot) cleanupLoop(ctx context.Context) {
	runLoop(ctx, "cache_cleanup", b.cleanupInterval, b.cleanupBackoff, b.cleanupOnce)
}

// cleanupOnce expires cached messages, prunes edit sessions and refreshes gauges.
func (b *Bot) cleanupOnce() {
	res := b.cache.CleanupExpired()
	pruned := b.sessions.Prune()
	stats := b.cache.Stats()

	metrics.CachedMessages.Set(float64(stats.Messages))
	metrics.CachedChats.Set(float64(stats.Chats))
	metrics.EditSessions.Set(float64(b.sessions.Len()))
	if res.Expired > 0 {
		metrics.CacheExpired.Add(float64(res.Expired))
	}

	log.Info().
		Bool("ran", res.Ran).
		Int("expired", res.Expired).
		Int("chats_dropped", res.ChatsDropped).
		Int("sessions_pruned", pruned).
		Int("chats", stats.Chats).
		Int("messages", stats.Messages).
		Msg("Cache stats")
}

func (b *Bot) trackingLoop(ctx context.Context) {
	runLoop(ctx, "tracking_sweep", b.trackingInterval, b.trackingBackoff, b.sweepOnce)
}

// sweepOnce drops tracked message ids older than the tracking window in every active chat.
func (b *Bot) sweepOnce() {
	removed := 0
	for _, chatID := range b.activeChats.ActiveChats() {
		removed += b.cache.SweepTracking(chatID, b.trackingWindow)
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Tracking sets swept")
	}
}
