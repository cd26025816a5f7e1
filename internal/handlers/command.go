package handlers

import (
	"context"
	"fmt"

	"susninja-bot/internal/broadcast"
	"susninja-bot/internal/locales"
	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/rs/zerolog/log"
)

// HandleStart handles the /start command.
// It cancels a pending broadcast, records the user, and sends the welcome message.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	if message.From != nil && h.broadcaster.Disarm(message.From.ID) {
		text := locales.GetMessage(localizer, "MsgBroadcastCancelled", nil, nil)
		if _, err := reply(ctx, bot, message.Chat.ID, 0, text, nil); err != nil {
			return fmt.Errorf("failed to confirm broadcast cancel: %w", err)
		}
		return nil
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandStart, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})
	if isGroup(message.Chat) {
		h.trackGroup(ctx, message.Chat)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		return h.sendError(ctx, bot, message, "MsgStartError", fmt.Errorf("failed to get bot info: %w", err))
	}

	text := locales.GetMessage(localizer, "MsgStartWelcome", map[string]interface{}{
		"Mention": mentionOf(message.From),
	}, nil)
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnUpdates", nil, nil)).WithURL(h.channelURL),
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnSupport", nil, nil)).WithURL(h.groupURL),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnAddToGroup", nil, nil)).
				WithURL(fmt.Sprintf("https://t.me/%s?startgroup=true", me.Username)),
		),
	)

	if _, err := reply(ctx, bot, message.Chat.ID, message.MessageID, text, keyboard); err != nil {
		return h.sendError(ctx, bot, message, "MsgStartError", fmt.Errorf("failed to send welcome: %w", err))
	}
	return nil
}

// HandleHelp handles the /help command and sends the minimized guide with an expand button.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	h.RecordUserActivity(ctx, message.From, ActionCommandHelp, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	text, keyboard := helpView(localizer, mentionOf(message.From), false)
	if _, err := reply(ctx, bot, message.Chat.ID, message.MessageID, text, keyboard); err != nil {
		return h.sendError(ctx, bot, message, "MsgHelpError", fmt.Errorf("failed to send help: %w", err))
	}
	return nil
}

// helpView renders the help text and its toggle keyboard.
func helpView(localizer *i18n.Localizer, mention string, expanded bool) (string, *telego.InlineKeyboardMarkup) {
	data := map[string]interface{}{"Mention": mention}
	if expanded {
		return locales.GetMessage(localizer, "MsgHelpExpanded", data, nil), tu.InlineKeyboard(tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnHelpMinimize", nil, nil)).WithCallbackData(CallbackHelpMinimize),
		))
	}
	return locales.GetMessage(localizer, "MsgHelpBasic", data, nil), tu.InlineKeyboard(tu.InlineKeyboardRow(
		tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnHelpExpand", nil, nil)).WithCallbackData(CallbackHelpExpand),
	))
}

// HandlePing handles the /ping command, reporting the Telegram API round trip.
func (h *MessageHandler) HandlePing(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)
	h.RecordUserActivity(ctx, message.From, ActionCommandPing, nil)

	start := h.now()
	if _, err := bot.GetMe(ctx); err != nil {
		log.Warn().Err(err).Msg("Ping round trip failed")
		text := locales.GetMessage(localizer, "MsgPingFallback", nil, nil)
		if _, sendErr := reply(ctx, bot, message.Chat.ID, message.MessageID, text, nil); sendErr != nil {
			return fmt.Errorf("failed to send ping fallback: %w", sendErr)
		}
		return nil
	}
	latency := h.now().Sub(start)

	text := locales.GetMessage(localizer, "MsgPong", map[string]interface{}{
		"GroupURL": h.groupURL,
		"Latency":  fmt.Sprintf("%.2f", float64(latency.Microseconds())/1000),
	}, nil)
	if _, err := reply(ctx, bot, message.Chat.ID, message.MessageID, text, nil); err != nil {
		return fmt.Errorf("failed to send pong: %w", err)
	}
	return nil
}

// HandleBroadcast handles the owner-only /broadcast command by offering the target picker.
func (h *MessageHandler) HandleBroadcast(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	if message.From == nil || !h.adminChecker.IsOwner(message.From.ID) {
		var userID int64
		if message.From != nil {
			userID = message.From.ID
		}
		log.Warn().Int64("user_id", userID).Msg("Unauthorized broadcast attempt")
		text := locales.GetMessage(localizer, "MsgBroadcastRestricted", nil, nil)
		if _, err := reply(ctx, bot, message.Chat.ID, 0, text, nil); err != nil {
			return fmt.Errorf("failed to send broadcast restriction: %w", err)
		}
		return nil
	}

	h.RecordUserActivity(ctx, message.From, ActionCommandBroadcast, nil)

	users := len(h.broadcaster.Recipients(broadcast.TargetUsers))
	groups := len(h.broadcaster.Recipients(broadcast.TargetGroups))
	text := locales.GetMessage(localizer, "MsgBroadcastChooseTarget", map[string]interface{}{
		"Users":  users,
		"Groups": groups,
	}, nil)
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnBroadcastUsers", map[string]interface{}{"Count": users}, nil)).
				WithCallbackData(CallbackBroadcastUsers),
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnBroadcastGroups", map[string]interface{}{"Count": groups}, nil)).
				WithCallbackData(CallbackBroadcastGroups),
		),
	)
	if _, err := reply(ctx, bot, message.Chat.ID, 0, text, keyboard); err != nil {
		return h.sendError(ctx, bot, message, "MsgBroadcastError", fmt.Errorf("failed to send broadcast picker: %w", err))
	}
	return nil
}

// SetupCommands publishes the menu commands to Telegram.
func (h *MessageHandler) SetupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	var commands []telego.BotCommand
	for _, cmd := range h.commands {
		if !cmd.InMenu {
			continue
		}
		commands = append(commands, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands}); err != nil {
		return fmt.Errorf("failed to set bot commands: %w", err)
	}
	log.Info().Int("commands", len(commands)).Msg("Bot commands registered")
	return nil
}
