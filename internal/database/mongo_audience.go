package database

import (
	"context"
	"fmt"
	"time"

	"susninja-bot/internal/database/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection       = "users"
	groupsCollection      = "groups"
	userActionsCollection = "user_actions"
)

// MongoAudience implements AudienceRepository and UserActionLogger using MongoDB.
type MongoAudience struct {
	db  *mongo.Database
	now func() time.Time
}

// NewMongoAudience creates a repository on a connected database.
func NewMongoAudience(db *mongo.Database) *MongoAudience {
	return &MongoAudience{db: db, now: time.Now}
}

// LogUserAction writes a user action log entry to the database.
// It records the user ID, action type, additional details, and timestamp.
func (m *MongoAudience) LogUserAction(userID int64, action string, details interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.db.Collection(userActionsCollection).InsertOne(ctx, bson.M{
		"user_id": userID,
		"action":  action,
		"details": details,
		"time":    m.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to insert user action log for user %d: %w", userID, err)
	}
	return nil
}

// UpdateUser updates or inserts user information, counting actions and
// recording first/last sightings.
func (m *MongoAudience) UpdateUser(ctx context.Context, userID int64, username, firstName, lastName, action string) error {
	_, err := m.db.Collection(usersCollection).UpdateOne(
		ctx,
		bson.M{"user_id": userID},
		userUpdate(userID, username, firstName, lastName, action, m.now()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", userID, err)
	}
	return nil
}

// UpdateGroup updates or inserts a group record.
func (m *MongoAudience) UpdateGroup(ctx context.Context, chatID int64, title, chatType string) error {
	_, err := m.db.Collection(groupsCollection).UpdateOne(
		ctx,
		bson.M{"chat_id": chatID},
		groupUpdate(chatID, title, chatType, m.now()),
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to update group %d: %w", chatID, err)
	}
	return nil
}

// ListUserIDs returns the ids of all stored users.
func (m *MongoAudience) ListUserIDs(ctx context.Context) ([]int64, error) {
	var users []models.User
	if err := m.findAll(ctx, usersCollection, bson.M{"user_id": 1}, &users); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	return ids, nil
}

// ListGroupIDs returns the ids of all stored groups.
func (m *MongoAudience) ListGroupIDs(ctx context.Context) ([]int64, error) {
	var groups []models.Group
	if err := m.findAll(ctx, groupsCollection, bson.M{"chat_id": 1}, &groups); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ChatID)
	}
	return ids, nil
}

func (m *MongoAudience) findAll(ctx context.Context, collection string, projection bson.M, out interface{}) error {
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{}, options.Find().SetProjection(projection))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", collection, err)
	}
	return nil
}

func userUpdate(userID int64, username, firstName, lastName, action string, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"username":    username,
			"first_name":  firstName,
			"last_name":   lastName,
			"last_seen":   now,
			"last_action": action,
		},
		"$inc": bson.M{
			"actions_count": 1,
		},
		"$setOnInsert": bson.M{
			"first_seen": now,
			"user_id":    userID,
		},
	}
}

func groupUpdate(chatID int64, title, chatType string, now time.Time) bson.M {
	return bson.M{
		"$set": bson.M{
			"title":     title,
			"type":      chatType,
			"last_seen": now,
		},
		"$setOnInsert": bson.M{
			"first_seen": now,
			"chat_id":    chatID,
		},
	}
}
