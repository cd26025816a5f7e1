package handlers

import (
	"context"
	"fmt"

	"susninja-bot/internal/audience"
	"susninja-bot/internal/cache"
	"susninja-bot/internal/edits"
	"susninja-bot/internal/locales"
	"susninja-bot/internal/metrics"
	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

// cleanupEvery triggers an opportunistic cache cleanup whenever the cache
// holds a multiple of this many messages.
const cleanupEvery = 100

// HandlePrivateMessage handles non-command messages in private chats.
// When the sender has broadcast mode armed, the message is broadcast.
func (h *MessageHandler) HandlePrivateMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}

	if !h.broadcaster.IsArmed(message.From.ID) {
		h.audience.AddUser(ctx, audienceUser(message.From), ActionPrivateMessage)
		return nil
	}

	summary := h.broadcaster.Run(ctx, message.From.ID, message.Chat.ID, message.MessageID)
	h.RecordUserActivity(ctx, message.From, ActionBroadcastSend, map[string]interface{}{
		"run_id": summary.RunID.String(),
		"target": string(summary.Target),
		"sent":   summary.Sent,
		"failed": summary.Failed,
	})

	text := locales.GetMessage(h.getLocalizer(message.From), "MsgBroadcastSummary", map[string]interface{}{
		"Sent":   summary.Sent,
		"Failed": summary.Failed,
		"Target": string(summary.Target),
	}, nil)
	if _, err := reply(ctx, bot, message.Chat.ID, 0, text, nil); err != nil {
		return fmt.Errorf("failed to send broadcast summary: %w", err)
	}
	return nil
}

// HandleGroupMessage caches a group message so later edits can be compared with it.
func (h *MessageHandler) HandleGroupMessage(ctx context.Context, message telego.Message) {
	if message.From != nil {
		h.audience.AddUser(ctx, audienceUser(message.From), ActionGroupMessage)
	}
	h.trackGroup(ctx, message.Chat)
	h.audience.MarkActive(message.Chat.ID)

	h.messages.Add(message.Chat.ID, recordOf(message))

	if total := h.messages.Total(); total > 0 && total%cleanupEvery == 0 {
		if res := h.messages.CleanupExpired(); res.Ran && res.Expired > 0 {
			metrics.CacheExpired.Add(float64(res.Expired))
		}
	}
}

// HandleEditedMessage compares an edited group message with its cached snapshot
// and posts a collapsed notification when the text changed.
func (h *MessageHandler) HandleEditedMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !isGroup(message.Chat) {
		return nil
	}

	detection := h.detector.Detect(recordOf(message), editorOf(message.From))
	if detection.Outcome != edits.OutcomeChanged {
		return nil
	}
	metrics.EditsDetected.Inc()
	metrics.EditSessions.Set(float64(h.sessions.Len()))

	text, keyboard := editView(h.getLocalizer(nil), detection.Key.MessageID, detection.Session, false)

	_, err := reply(ctx, bot, message.Chat.ID, message.MessageID, text, keyboard)
	if err != nil {
		// The edited message may be gone already; post without the reply link.
		log.Warn().Err(err).Int64("chat_id", message.Chat.ID).Int("message_id", message.MessageID).Msg("Reply to edited message failed, retrying standalone")
		if _, err = reply(ctx, bot, message.Chat.ID, 0, text, keyboard); err != nil {
			return fmt.Errorf("failed to send edit notification: %w", err)
		}
	}
	return nil
}

// HandleNewMembers greets a group when the bot itself is among the new members.
func (h *MessageHandler) HandleNewMembers(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if !isGroup(message.Chat) {
		return nil
	}
	h.trackGroup(ctx, message.Chat)
	h.audience.MarkActive(message.Chat.ID)

	me, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}

	for _, member := range message.NewChatMembers {
		if member.ID != me.ID {
			continue
		}
		log.Info().Int64("chat_id", message.Chat.ID).Str("title", message.Chat.Title).Msg("Bot added to group")
		text := locales.GetMessage(h.getLocalizer(message.From), "MsgBotAdded", nil, nil)
		if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), text)); err != nil {
			return fmt.Errorf("failed to send greeting: %w", err)
		}
		return nil
	}
	return nil
}

func (h *MessageHandler) trackGroup(ctx context.Context, chat telego.Chat) {
	h.audience.AddGroup(ctx, audience.Group{ID: chat.ID, Title: chat.Title, Type: chat.Type})
}

// recordOf snapshots a message for the cache. Media messages use their caption.
func recordOf(message telego.Message) cache.Record {
	rec := cache.Record{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		Text:      message.Text,
		Date:      message.Date,
	}
	if rec.Text == "" {
		rec.Text = message.Caption
	}
	if message.From != nil {
		id := message.From.ID
		rec.AuthorID = &id
		rec.AuthorUsername = message.From.Username
		rec.AuthorFirstName = message.From.FirstName
		rec.AuthorLastName = message.From.LastName
	}
	if message.ReplyToMessage != nil {
		id := message.ReplyToMessage.MessageID
		rec.ReplyToMessageID = &id
	}
	return rec
}
