package handlers

import (
	"context"
	"fmt"
	"strings"

	"susninja-bot/internal/broadcast"
	"susninja-bot/internal/edits"
	"susninja-bot/internal/locales"
	"susninja-bot/internal/metrics"
	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
)

// HandleCallbackQuery dispatches inline button presses by their callback data.
// Unknown data is acknowledged silently.
func (h *MessageHandler) HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	var err error
	switch data := query.Data; {
	case data == CallbackHelpExpand:
		err = h.handleHelpToggle(ctx, bot, query, true)
	case data == CallbackHelpMinimize:
		err = h.handleHelpToggle(ctx, bot, query, false)
	case data == CallbackBroadcastUsers:
		err = h.handleBroadcastTarget(ctx, bot, query, broadcast.TargetUsers)
	case data == CallbackBroadcastGroups:
		err = h.handleBroadcastTarget(ctx, bot, query, broadcast.TargetGroups)
	case strings.HasPrefix(data, edits.RevealPrefix+":"):
		err = h.handleReveal(ctx, bot, query)
	case strings.HasPrefix(data, edits.DismissPrefix+":"):
		err = h.handleDismiss(ctx, bot, query)
	default:
		log.Debug().Str("data", data).Msg("Unknown callback data")
		answer(ctx, bot, query, "", false)
	}

	if err != nil {
		answer(ctx, bot, query, locales.GetMessage(h.getLocalizer(&query.From), "AnsCallbackError", nil, nil), true)
		return fmt.Errorf("callback %q: %w", query.Data, err)
	}
	return nil
}

func (h *MessageHandler) handleHelpToggle(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, expand bool) error {
	localizer := h.getLocalizer(&query.From)
	msg, ok := callbackMessage(query)
	if !ok {
		answer(ctx, bot, query, "", false)
		return nil
	}

	text, keyboard := helpView(localizer, mentionOf(&query.From), expand)
	_, err := bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(msg.Chat.ID),
		MessageID:   msg.MessageID,
		Text:        text,
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: keyboard,
	})
	if err != nil {
		errID := "AnsHelpMinimizeError"
		if expand {
			errID = "AnsHelpExpandError"
		}
		log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Msg("Failed to toggle help")
		answer(ctx, bot, query, locales.GetMessage(localizer, errID, nil, nil), true)
		return nil
	}
	answer(ctx, bot, query, "", false)
	return nil
}

func (h *MessageHandler) handleReveal(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	localizer := h.getLocalizer(&query.From)
	action, err := edits.ParseAction(query.Data)
	if err != nil {
		return err
	}

	if err := edits.CanToggle(query.From.ID, action.EditorID); err != nil {
		log.Warn().Int64("user_id", query.From.ID).Int("message_id", action.MessageID).Msg("Editor tried to reveal own edit")
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditSelfToggle", nil, nil), true)
		return nil
	}

	msg, ok := callbackMessage(query)
	if !ok {
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditExpired", nil, nil), true)
		return nil
	}
	session, ok := h.sessions.Get(edits.Key{ChatID: msg.Chat.ID, MessageID: action.MessageID})
	if !ok {
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditExpired", nil, nil), true)
		return nil
	}

	expand := !edits.IsExpanded(msg.Text)
	text, keyboard := editView(h.getLocalizer(nil), action.MessageID, session, expand)
	if _, err := bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:      tu.ID(msg.Chat.ID),
		MessageID:   msg.MessageID,
		Text:        text,
		ParseMode:   telego.ModeHTML,
		ReplyMarkup: keyboard,
	}); err != nil {
		return fmt.Errorf("failed to toggle edit notification: %w", err)
	}

	h.RecordUserActivity(ctx, &query.From, ActionEditReveal, map[string]interface{}{
		"chat_id":    msg.Chat.ID,
		"message_id": action.MessageID,
		"expanded":   expand,
	})

	state := "hidden"
	if expand {
		state = "revealed"
	}
	answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditToggled", map[string]interface{}{"Action": state}, nil), false)
	return nil
}

func (h *MessageHandler) handleDismiss(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error {
	localizer := h.getLocalizer(&query.From)
	action, err := edits.ParseAction(query.Data)
	if err != nil {
		return err
	}
	msg, ok := callbackMessage(query)
	if !ok {
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditExpired", nil, nil), true)
		return nil
	}

	key := edits.Key{ChatID: msg.Chat.ID, MessageID: action.MessageID}
	editorID := h.dismissEditor(action, key, msg)
	if err := edits.CanToggle(query.From.ID, editorID); err != nil {
		log.Warn().Int64("user_id", query.From.ID).Int("message_id", action.MessageID).Msg("Editor tried to dismiss own edit")
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditSelfDismiss", nil, nil), true)
		return nil
	}

	isAdmin, err := h.adminChecker.IsAdmin(ctx, msg.Chat.ID, query.From.ID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", msg.Chat.ID).Int64("user_id", query.From.ID).Msg("Admin check failed")
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsAdminCheckFailed", nil, nil), true)
		return nil
	}
	if err := edits.CanDismiss(query.From.ID, editorID, isAdmin); err != nil {
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditAdminOnly", nil, nil), true)
		return nil
	}

	if err := bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    tu.ID(msg.Chat.ID),
		MessageID: msg.MessageID,
	}); err != nil {
		return fmt.Errorf("failed to delete edit notification: %w", err)
	}

	h.sessions.Delete(key)
	metrics.EditSessions.Set(float64(h.sessions.Len()))
	h.RecordUserActivity(ctx, &query.From, ActionEditDismiss, map[string]interface{}{
		"chat_id":    msg.Chat.ID,
		"message_id": action.MessageID,
	})
	answer(ctx, bot, query, locales.GetMessage(localizer, "AnsEditDismissed", nil, nil), false)
	return nil
}

// dismissEditor resolves who made the edit behind a notification. Sessions
// expire, so the button payload and the notification keyboard are consulted too.
func (h *MessageHandler) dismissEditor(action edits.Action, key edits.Key, msg *telego.Message) int64 {
	if action.EditorID != 0 {
		return action.EditorID
	}
	if session, found := h.sessions.Get(key); found {
		return session.EditorID
	}
	if editorID, found := edits.EditorFromKeyboard(msg.ReplyMarkup); found {
		return editorID
	}
	return 0
}

func (h *MessageHandler) handleBroadcastTarget(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery, target broadcast.Target) error {
	localizer := h.getLocalizer(&query.From)
	if !h.adminChecker.IsOwner(query.From.ID) {
		log.Warn().Int64("user_id", query.From.ID).Msg("Unauthorized broadcast target selection")
		answer(ctx, bot, query, locales.GetMessage(localizer, "AnsBroadcastNotForYou", nil, nil), true)
		return nil
	}

	h.broadcaster.Arm(query.From.ID, target)
	h.RecordUserActivity(ctx, &query.From, ActionBroadcastArm, map[string]interface{}{"target": string(target)})
	answer(ctx, bot, query, locales.GetMessage(localizer, "AnsBroadcastLive", map[string]interface{}{"Target": string(target)}, nil), false)

	msg, ok := callbackMessage(query)
	if !ok {
		return nil
	}
	text := locales.GetMessage(localizer, "MsgBroadcastActivated", map[string]interface{}{
		"TargetTitle": strings.ToUpper(string(target[:1])) + string(target[1:]),
		"Count":       len(h.broadcaster.Recipients(target)),
		"Target":      string(target),
	}, nil)
	if _, err := bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(msg.Chat.ID),
		MessageID: msg.MessageID,
		Text:      text,
		ParseMode: telego.ModeHTML,
	}); err != nil {
		return fmt.Errorf("failed to show broadcast instructions: %w", err)
	}
	return nil
}

// editView renders an edit notification in collapsed or expanded form.
func editView(localizer *i18n.Localizer, messageID int, session edits.Session, expanded bool) (string, *telego.InlineKeyboardMarkup) {
	var text string
	if expanded {
		text = locales.GetMessage(localizer, "MsgEditExpanded", map[string]interface{}{
			"Mention":  session.EditorMention,
			"Original": session.OriginalEscaped,
			"New":      session.NewEscaped,
		}, nil)
	} else {
		text = locales.GetMessage(localizer, "MsgEditCollapsed", map[string]interface{}{
			"Mention": session.EditorMention,
		}, nil)
	}
	keyboard := tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton(edits.ToggleGlyph(expanded)).WithCallbackData(edits.RevealData(messageID, session.EditorID)),
		tu.InlineKeyboardButton(edits.GlyphDismiss).WithCallbackData(edits.DismissData(messageID, session.EditorID)),
	))
	return text, keyboard
}
