// Package broadcast fans an operator message out to every tracked user or group.
package broadcast

import (
	"context"
	"sync"

	"susninja-bot/internal/metrics"
	"susninja-bot/pkg/telegoapi"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

// Target selects the recipient set of a broadcast.
type Target string

const (
	TargetNone   Target = ""
	TargetUsers  Target = "users"
	TargetGroups Target = "groups"
)

// Audience supplies broadcast recipients.
type Audience interface {
	Users() []int64
	Groups() []int64
}

// Summary reports the outcome of one broadcast run.
type Summary struct {
	RunID  uuid.UUID
	Target Target
	Sent   int
	Failed int
}

// Manager keeps the armed broadcast mode per operator and runs broadcasts.
type Manager struct {
	bot      telegoapi.BotAPI
	audience Audience
	limiter  ratelimit.Limiter

	mu    sync.RWMutex
	armed map[int64]Target
}

// NewManager creates a broadcast manager sending at most perSecond copies per
// second. A non-positive perSecond disables pacing.
func NewManager(bot telegoapi.BotAPI, audience Audience, perSecond int) *Manager {
	limiter := ratelimit.NewUnlimited()
	if perSecond > 0 {
		limiter = ratelimit.New(perSecond)
	}
	return &Manager{
		bot:      bot,
		audience: audience,
		limiter:  limiter,
		armed:    make(map[int64]Target),
	}
}

// Arm switches userID into broadcast mode for target.
func (m *Manager) Arm(userID int64, target Target) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.armed[userID] = target
	log.Info().Int64("user_id", userID).Str("target", string(target)).Msg("Broadcast mode enabled")
}

// Disarm leaves broadcast mode and reports whether it was active.
func (m *Manager) Disarm(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.armed[userID]; !ok {
		return false
	}
	delete(m.armed, userID)
	log.Info().Int64("user_id", userID).Msg("Broadcast mode disabled")
	return true
}

// TargetFor returns the armed target of userID, or TargetNone.
func (m *Manager) TargetFor(userID int64) Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.armed[userID]
}

// IsArmed reports whether userID is in broadcast mode.
func (m *Manager) IsArmed(userID int64) bool {
	return m.TargetFor(userID) != TargetNone
}

// Recipients returns the ids addressed by target.
func (m *Manager) Recipients(target Target) []int64 {
	if target == TargetGroups {
		return m.audience.Groups()
	}
	return m.audience.Users()
}

// Run copies message (fromChatID, messageID) to every recipient of the target
// armed by userID, then disarms userID. Per-recipient failures are counted,
// not returned. A cancelled ctx stops the run early.
func (m *Manager) Run(ctx context.Context, userID, fromChatID int64, messageID int) Summary {
	target := m.TargetFor(userID)
	if target == TargetNone {
		target = TargetUsers
	}
	defer m.Disarm(userID)

	summary := Summary{RunID: uuid.New(), Target: target}
	logger := log.With().Str("run_id", summary.RunID.String()).Str("target", string(target)).Logger()

	recipients := m.Recipients(target)
	logger.Info().Int("recipients", len(recipients)).Msg("Broadcast started")

	for _, chatID := range recipients {
		if ctx.Err() != nil {
			logger.Warn().Msg("Broadcast interrupted")
			break
		}
		m.limiter.Take()

		_, err := m.bot.CopyMessage(ctx, &telego.CopyMessageParams{
			ChatID:     tu.ID(chatID),
			FromChatID: tu.ID(fromChatID),
			MessageID:  messageID,
		})
		if err != nil {
			summary.Failed++
			metrics.BroadcastMessages.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send broadcast")
			continue
		}
		summary.Sent++
		metrics.BroadcastMessages.WithLabelValues("sent").Inc()
	}

	logger.Info().Int("sent", summary.Sent).Int("failed", summary.Failed).Msg("Broadcast completed")
	return summary
}
