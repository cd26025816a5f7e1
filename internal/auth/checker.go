package auth

import (
	"context"
	"fmt"
	"strings"

	"susninja-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog/log"
)

// AdminCheckerInterface is what handlers need from an admin checker.
type AdminCheckerInterface interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	IsOwner(userID int64) bool
}

// AdminChecker answers whether a user administers a chat and whether a user
// is the bot operator.
type AdminChecker struct {
	bot     telegoapi.BotAPI
	ownerID int64
}

// NewAdminChecker creates a new AdminChecker.
// ownerID may be zero, in which case nobody is treated as the owner.
func NewAdminChecker(bot telegoapi.BotAPI, ownerID int64) (*AdminChecker, error) {
	if bot == nil {
		return nil, fmt.Errorf("telego bot instance cannot be nil")
	}
	return &AdminChecker{
		bot:     bot,
		ownerID: ownerID,
	}, nil
}

// IsAdmin checks if a user is an administrator or creator of chatID.
func (ac *AdminChecker) IsAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := ac.bot.GetChatMember(ctx, &telego.GetChatMemberParams{
		ChatID: telego.ChatID{ID: chatID},
		UserID: userID,
	})
	if err != nil {
		// A user not found in the chat is simply not an admin.
		if strings.Contains(strings.ToLower(err.Error()), "user not found") {
			return false, nil
		}
		log.Warn().Err(err).Int64("chat_id", chatID).Int64("user_id", userID).Msg("Error checking chat member")
		return false, fmt.Errorf("failed to get chat member info: %w", err)
	}

	status := member.MemberStatus()
	return status == telego.MemberStatusCreator || status == telego.MemberStatusAdministrator, nil
}

// IsOwner reports whether userID is the configured operator.
func (ac *AdminChecker) IsOwner(userID int64) bool {
	return ac.ownerID != 0 && userID == ac.ownerID
}
