package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"susninja-bot/internal/cache"
	"susninja-bot/internal/locales"
	"susninja-bot/internal/metrics"
	"susninja-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
)

const (
	processingTimeout = 30 * time.Second
	setCommandsTries  = 3
)

// Handler is what the update loop dispatches to.
type Handler interface {
	GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error
	HandlePrivateMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error
	HandleGroupMessage(ctx context.Context, message telego.Message)
	HandleEditedMessage(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error
	HandleNewMembers(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error
	HandleCallbackQuery(ctx context.Context, bot telegoapi.BotAPI, query telego.CallbackQuery) error
	SetupCommands(ctx context.Context, bot telegoapi.BotAPI) error
}

// MessageCache is the maintenance surface of the message cache.
type MessageCache interface {
	CleanupExpired() cache.CleanupResult
	SweepTracking(chatID int64, olderThan time.Duration) int
	Stats() cache.Stats
}

// SessionStore is the maintenance surface of the edit session store.
type SessionStore interface {
	Prune() int
	Len() int
}

// ActiveChats lists chats whose tracking sets are swept.
type ActiveChats interface {
	ActiveChats() []int64
}

// Bot represents the main application loop for the Telegram bot.
// It consumes updates one at a time, routes them to the handler and runs
// the cache maintenance loops alongside.
type Bot struct {
	bot         telegoapi.BotAPI
	updatesChan <-chan telego.Update
	handler     Handler
	cache       MessageCache
	sessions    SessionStore
	activeChats ActiveChats
	debug       bool
	ratelimiter ratelimit.Limiter

	cleanupInterval  time.Duration
	cleanupBackoff   time.Duration
	trackingInterval time.Duration
	trackingBackoff  time.Duration
	trackingWindow   time.Duration
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot         telegoapi.BotAPI
	UpdatesChan <-chan telego.Update
	Handler     Handler
	Cache       MessageCache
	Sessions    SessionStore
	ActiveChats ActiveChats
	Debug       bool

	UpdatesPerSecond int
	CleanupInterval  time.Duration
	TrackingWindow   time.Duration
}

// New creates a new Bot instance from its dependencies.
// Returns the new Bot instance or an error if dependencies are missing.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.Cache == nil {
		return nil, fmt.Errorf("message cache cannot be nil")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("edit session store cannot be nil")
	}
	if deps.ActiveChats == nil {
		return nil, fmt.Errorf("active chats provider cannot be nil")
	}

	limiter := ratelimit.NewUnlimited()
	if deps.UpdatesPerSecond > 0 {
		limiter = ratelimit.New(deps.UpdatesPerSecond)
	}
	if deps.CleanupInterval <= 0 {
		deps.CleanupInterval = cache.DefaultCleanupInterval
	}
	if deps.TrackingWindow <= 0 {
		deps.TrackingWindow = 2 * time.Hour
	}

	return &Bot{
		bot:              deps.Bot,
		updatesChan:      deps.UpdatesChan,
		handler:          deps.Handler,
		cache:            deps.Cache,
		sessions:         deps.Sessions,
		activeChats:      deps.ActiveChats,
		debug:            deps.Debug,
		ratelimiter:      limiter,
		cleanupInterval:  deps.CleanupInterval,
		cleanupBackoff:   time.Minute,
		trackingInterval: time.Minute,
		trackingBackoff:  5 * time.Minute,
		trackingWindow:   deps.TrackingWindow,
	}, nil
}

// Start registers the command menu, starts the maintenance loops and processes
// updates until ctx is cancelled or the updates channel is closed. It returns
// after the maintenance loops have exited.
func (b *Bot) Start(ctx context.Context) {
	if err := withRetry(ctx, "set commands", setCommandsTries, func() error {
		return b.handler.SetupCommands(ctx, b.bot)
	}); err != nil {
		log.Error().Err(err).Msg("Failed to register bot commands")
		sentry.CaptureException(err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(2)
	go func() {
		defer wg.Done()
		b.cleanupLoop(loopCtx)
	}()
	go func() {
		defer wg.Done()
		b.trackingLoop(loopCtx)
	}()

	log.Info().Msg("Listening for updates...")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Context done, stopping update processing")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Info().Msg("Updates channel closed")
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// processUpdate routes one update to the appropriate handler.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()
	metrics.Updates.WithLabelValues(updateKind(update)).Inc()

	// Handle potential panics in handlers
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Int("update_id", update.UpdateID).Msg("Panic recovered in processUpdate")
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
			b.apologize(ctx, update)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, processingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		b.handleMessage(processingCtx, *update.Message)
	case update.EditedMessage != nil:
		msg := *update.EditedMessage
		b.report("edited_message", msg.Chat.ID, b.handler.HandleEditedMessage(processingCtx, b.bot, msg))
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(processingCtx, *update.CallbackQuery)
	default:
		if b.debug {
			log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unhandled update type")
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message telego.Message) {
	if strings.HasPrefix(message.Text, "/") && b.handleCommandUpdate(ctx, message) {
		return
	}

	switch {
	case len(message.NewChatMembers) > 0:
		b.report("new_members", message.Chat.ID, b.handler.HandleNewMembers(ctx, b.bot, message))
	case message.Chat.Type == telego.ChatTypePrivate:
		if strings.HasPrefix(message.Text, "/") {
			log.Debug().Int64("chat_id", message.Chat.ID).Str("text", message.Text).Msg("Ignoring unknown command")
			return
		}
		b.report("private_message", message.Chat.ID, b.handler.HandlePrivateMessage(ctx, b.bot, message))
	case message.Chat.Type == telego.ChatTypeGroup || message.Chat.Type == telego.ChatTypeSupergroup:
		b.handler.HandleGroupMessage(ctx, message)
	default:
		if b.debug {
			log.Debug().Int64("chat_id", message.Chat.ID).Str("chat_type", message.Chat.Type).Msg("Ignoring message")
		}
	}
}

// handleCommandUpdate runs a known command and reports whether one matched.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) bool {
	command := commandName(message.Text)
	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc == nil {
		return false
	}

	logger := log.With().Str("command", command).Int64("chat_id", message.Chat.ID).Logger()
	if message.From != nil {
		logger = logger.With().Int64("user_id", message.From.ID).Logger()
	}
	if b.debug {
		logger.Debug().Msg("Executing handler")
	}
	if err := handlerFunc(ctx, b.bot, message); err != nil {
		logger.Error().Err(err).Msg("Handler error")
		sentry.CaptureException(fmt.Errorf("command %s: %w", command, err))
	}
	return true
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query telego.CallbackQuery) {
	if b.debug {
		log.Debug().Int64("user_id", query.From.ID).Str("data", query.Data).Msg("Received callback query")
	}
	if err := b.handler.HandleCallbackQuery(ctx, b.bot, query); err != nil {
		log.Error().Err(err).Int64("user_id", query.From.ID).Str("callback_id", query.ID).Msg("Callback handler error")
		sentry.CaptureException(err)
	}
}

func (b *Bot) report(kind string, chatID int64, err error) {
	if err == nil {
		return
	}
	log.Error().Err(err).Str("kind", kind).Int64("chat_id", chatID).Msg("Handler error")
	sentry.CaptureException(fmt.Errorf("%s: %w", kind, err))
}

// apologize sends a best-effort error notice after a panic, when the chat is known.
func (b *Bot) apologize(ctx context.Context, update telego.Update) {
	var chatID int64
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
	case update.EditedMessage != nil:
		chatID = update.EditedMessage.Chat.ID
	default:
		return
	}
	text := locales.GetMessage(locales.NewLocalizer(locales.GetDefaultLanguageTag().String()), "MsgErrorGeneral", nil, nil)
	if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send error notice")
	}
}

// commandName extracts "start" from "/start@SusNinjaBot payload".
func commandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func updateKind(update telego.Update) string {
	switch {
	case update.Message != nil:
		return "message"
	case update.EditedMessage != nil:
		return "edited_message"
	case update.CallbackQuery != nil:
		return "callback_query"
	default:
		return "other"
	}
}
