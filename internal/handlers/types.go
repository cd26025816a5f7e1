package handlers

import (
	"context"
	"time"

	"susninja-bot/internal/audience"
	"susninja-bot/internal/auth"
	"susninja-bot/internal/broadcast"
	"susninja-bot/internal/cache"
	"susninja-bot/internal/database"
	"susninja-bot/internal/edits"
	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// Command represents a bot command, mapping the command string to its description and handler function.
type Command struct {
	Command     string                                                          // The command string (e.g., "start").
	Description string                                                          // Localization key of the menu description.
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error // The function to execute when the command is received.
	InMenu      bool                                                            // Whether the command is published with SetMyCommands.
}

// MessageCache is the part of the message cache used by the handlers.
type MessageCache interface {
	Add(chatID int64, rec cache.Record)
	Total() int
	CleanupExpired() cache.CleanupResult
}

// AudienceTracker records who the bot has seen.
type AudienceTracker interface {
	AddUser(ctx context.Context, u audience.User, action string) bool
	AddGroup(ctx context.Context, g audience.Group) bool
	MarkActive(chatID int64)
	Counts() audience.Counts
}

// Broadcaster keeps the operator's broadcast mode and runs broadcasts.
type Broadcaster interface {
	Arm(userID int64, target broadcast.Target)
	Disarm(userID int64) bool
	IsArmed(userID int64) bool
	Recipients(target broadcast.Target) []int64
	Run(ctx context.Context, userID, fromChatID int64, messageID int) broadcast.Summary
}

// Deps holds the dependencies of a MessageHandler.
type Deps struct {
	Messages     MessageCache
	Detector     *edits.Detector
	Sessions     *edits.Store
	Audience     AudienceTracker
	Broadcaster  Broadcaster
	AdminChecker auth.AdminCheckerInterface
	ActionLogger database.UserActionLogger

	ChannelURL string
	GroupURL   string

	// Now defaults to time.Now; used to measure /ping latency.
	Now func() time.Time
}

// MessageHandler handles incoming Telegram messages and callbacks.
// It routes commands, feeds group traffic into the message cache, turns
// edits into notifications, and drives the broadcast workflow.
type MessageHandler struct {
	messages     MessageCache
	detector     *edits.Detector
	sessions     *edits.Store
	audience     AudienceTracker
	broadcaster  Broadcaster
	adminChecker auth.AdminCheckerInterface
	actionLogger database.UserActionLogger

	channelURL string
	groupURL   string
	now        func() time.Time

	// commands holds the list of available bot commands.
	commands []Command
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
// It validates dependencies and defines the available bot commands.
func NewMessageHandler(deps Deps) (*MessageHandler, error) {
	switch {
	case deps.Messages == nil:
		return nil, errMissingDep("message cache")
	case deps.Detector == nil:
		return nil, errMissingDep("edit detector")
	case deps.Sessions == nil:
		return nil, errMissingDep("edit session store")
	case deps.Audience == nil:
		return nil, errMissingDep("audience tracker")
	case deps.Broadcaster == nil:
		return nil, errMissingDep("broadcaster")
	case deps.AdminChecker == nil:
		return nil, errMissingDep("admin checker")
	}
	if deps.ActionLogger == nil {
		deps.ActionLogger = database.Nop{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	h := &MessageHandler{
		messages:     deps.Messages,
		detector:     deps.Detector,
		sessions:     deps.Sessions,
		audience:     deps.Audience,
		broadcaster:  deps.Broadcaster,
		adminChecker: deps.AdminChecker,
		actionLogger: deps.ActionLogger,
		channelURL:   deps.ChannelURL,
		groupURL:     deps.GroupURL,
		now:          deps.Now,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDesc", Handler: h.HandleStart, InMenu: true},
		{Command: "help", Description: "CmdHelpDesc", Handler: h.HandleHelp, InMenu: true},
		{Command: "ping", Handler: h.HandlePing},
		{Command: "broadcast", Handler: h.HandleBroadcast},
	}
	return h, nil
}

// GetCommandHandler retrieves the handler function associated with a specific command string (e.g., "start").
// It returns nil if the command is not found.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}
