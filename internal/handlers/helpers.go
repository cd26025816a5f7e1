package handlers

import (
	"context"
	"fmt"

	"susninja-bot/internal/audience"
	"susninja-bot/internal/edits"
	"susninja-bot/internal/locales"
	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
)

func errMissingDep(name string) error {
	return fmt.Errorf("handlers: %s is required", name)
}

// reply sends an HTML message to chatID, optionally as a reply to replyTo and with a keyboard.
func reply(ctx context.Context, bot telegoapi.BotAPI, chatID int64, replyTo int, text string, markup *telego.InlineKeyboardMarkup) (*telego.Message, error) {
	params := &telego.SendMessageParams{
		ChatID:    tu.ID(chatID),
		Text:      text,
		ParseMode: telego.ModeHTML,
	}
	if replyTo != 0 {
		params.ReplyParameters = &telego.ReplyParameters{MessageID: replyTo}
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	return bot.SendMessage(ctx, params)
}

// sendError sends a generic error message to the user.
// Logs the original error.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, msgID string, originalErr error) error {
	log.Error().Err(originalErr).Int64("chat_id", message.Chat.ID).Msg("Handler failed")

	errMsg := locales.GetMessage(h.getLocalizer(message.From), msgID, nil, nil)
	if _, sendErr := reply(ctx, bot, message.Chat.ID, 0, errMsg, nil); sendErr != nil {
		log.Error().Err(sendErr).Int64("chat_id", message.Chat.ID).Msg("Error sending error message")
	}

	// Return the original error to allow the main loop to report it to Sentry
	return originalErr
}

// answer acknowledges a callback query, optionally with a toast or alert.
func answer(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, text string, alert bool) {
	params := &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
		Text:            text,
		ShowAlert:       alert,
	}
	if err := bot.AnswerCallbackQuery(ctx, params); err != nil {
		log.Warn().Err(err).Str("callback_id", query.ID).Msg("Error answering callback query")
	}
}

// getLocalizer determines the best localizer for a given user.
// It falls back to the default language if the user object is nil or has no language code.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	if user != nil && user.LanguageCode != "" {
		return locales.NewLocalizer(user.LanguageCode, locales.GetDefaultLanguageTag().String())
	}
	return locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
}

// RecordUserActivity combines tracking the user and logging the action.
func (h *MessageHandler) RecordUserActivity(ctx context.Context, user *telego.User, action string, details map[string]interface{}) {
	if user == nil {
		log.Warn().Str("action", action).Msg("Attempted to record activity for nil user")
		return
	}

	h.audience.AddUser(ctx, audienceUser(user), action)

	if err := h.actionLogger.LogUserAction(user.ID, action, details); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Str("action", action).Msg("Error logging user action")
	}
}

func audienceUser(user *telego.User) audience.User {
	return audience.User{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

func editorOf(user *telego.User) edits.Editor {
	if user == nil {
		return edits.Editor{}
	}
	return edits.Editor{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// mentionOf renders an HTML mention, or "" when there is no user.
func mentionOf(user *telego.User) string {
	if user == nil {
		return ""
	}
	return editorOf(user).Mention()
}

// callbackMessage returns the message a callback button is attached to, if still accessible.
func callbackMessage(query telego.CallbackQuery) (*telego.Message, bool) {
	if query.Message == nil {
		return nil, false
	}
	msg, ok := query.Message.(*telego.Message)
	return msg, ok && msg != nil
}

func isGroup(chat telego.Chat) bool {
	return chat.Type == telego.ChatTypeGroup || chat.Type == telego.ChatTypeSupergroup
}
