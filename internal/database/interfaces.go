package database

import (
	"context"
)

// UserActionLogger defines the interface for logging user actions.
type UserActionLogger interface {
	// LogUserAction logs an action performed by a user.
	LogUserAction(userID int64, action string, details interface{}) error
}

// AudienceRepository persists the users and groups a broadcast can reach.
type AudienceRepository interface {
	// UpdateUser updates or creates a user record.
	UpdateUser(ctx context.Context, userID int64, username, firstName, lastName, action string) error
	// UpdateGroup updates or creates a group record.
	UpdateGroup(ctx context.Context, chatID int64, title, chatType string) error
	// ListUserIDs returns every known user id.
	ListUserIDs(ctx context.Context) ([]int64, error)
	// ListGroupIDs returns every known group id.
	ListGroupIDs(ctx context.Context) ([]int64, error)
}
