// Package audience keeps the sets of users and groups reachable by a broadcast.
package audience

import (
	"context"
	"sync"
	"time"

	"susninja-bot/internal/database"

	"github.com/rs/zerolog/log"
)

const repoTimeout = 5 * time.Second

// User describes a user seen by the bot.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Group describes a group chat seen by the bot.
type Group struct {
	ID    int64
	Title string
	Type  string
}

// Counts is a snapshot of the audience size.
type Counts struct {
	Users       int
	Groups      int
	ActiveChats int
}

// Tracker records users, groups, and chats with recent activity. Newly seen
// users and groups are persisted through the repository when one is set.
type Tracker struct {
	repo database.AudienceRepository

	mu          sync.RWMutex
	users       map[int64]struct{}
	groups      map[int64]struct{}
	activeChats map[int64]struct{}
}

// NewTracker creates an empty tracker. repo may be nil.
func NewTracker(repo database.AudienceRepository) *Tracker {
	return &Tracker{
		repo:        repo,
		users:       make(map[int64]struct{}),
		groups:      make(map[int64]struct{}),
		activeChats: make(map[int64]struct{}),
	}
}

// Load fills the in-memory sets from the repository.
func (t *Tracker) Load(ctx context.Context) error {
	if t.repo == nil {
		return nil
	}
	userIDs, err := t.repo.ListUserIDs(ctx)
	if err != nil {
		return err
	}
	groupIDs, err := t.repo.ListGroupIDs(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for _, id := range userIDs {
		t.users[id] = struct{}{}
	}
	for _, id := range groupIDs {
		t.groups[id] = struct{}{}
	}
	t.mu.Unlock()

	log.Info().Int("users", len(userIDs)).Int("groups", len(groupIDs)).Msg("Audience loaded")
	return nil
}

// AddUser records u and reports whether it was new. action names what the
// user did and is stored with the user record.
func (t *Tracker) AddUser(ctx context.Context, u User, action string) bool {
	if u.ID == 0 {
		return false
	}
	t.mu.Lock()
	_, known := t.users[u.ID]
	t.users[u.ID] = struct{}{}
	total := len(t.users)
	t.mu.Unlock()

	if known {
		return false
	}
	log.Debug().Int64("user_id", u.ID).Int("total_users", total).Msg("User added to broadcast tracking")

	if t.repo != nil {
		ctx, cancel := context.WithTimeout(ctx, repoTimeout)
		defer cancel()
		if err := t.repo.UpdateUser(ctx, u.ID, u.Username, u.FirstName, u.LastName, action); err != nil {
			log.Error().Err(err).Int64("user_id", u.ID).Msg("Failed to persist user")
		}
	}
	return true
}

// AddGroup records g and reports whether it was new.
func (t *Tracker) AddGroup(ctx context.Context, g Group) bool {
	if g.ID == 0 {
		return false
	}
	t.mu.Lock()
	_, known := t.groups[g.ID]
	t.groups[g.ID] = struct{}{}
	total := len(t.groups)
	t.mu.Unlock()

	if known {
		return false
	}
	log.Debug().Int64("chat_id", g.ID).Int("total_groups", total).Msg("Group added to broadcast tracking")

	if t.repo != nil {
		ctx, cancel := context.WithTimeout(ctx, repoTimeout)
		defer cancel()
		if err := t.repo.UpdateGroup(ctx, g.ID, g.Title, g.Type); err != nil {
			log.Error().Err(err).Int64("chat_id", g.ID).Msg("Failed to persist group")
		}
	}
	return true
}

// MarkActive adds chatID to the set of monitored chats.
func (t *Tracker) MarkActive(chatID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeChats[chatID] = struct{}{}
}

// ActiveChats returns the monitored chats.
func (t *Tracker) ActiveChats() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keys(t.activeChats)
}

// Users returns every tracked user id.
func (t *Tracker) Users() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keys(t.users)
}

// Groups returns every tracked group id.
func (t *Tracker) Groups() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return keys(t.groups)
}

// Counts returns the current set sizes.
func (t *Tracker) Counts() Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Counts{Users: len(t.users), Groups: len(t.groups), ActiveChats: len(t.activeChats)}
}

func keys(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
