package models

import "time"

// Group represents a group or supergroup the bot has seen messages in
type Group struct {
	ChatID    int64     `bson:"chat_id"`
	Title     string    `bson:"title,omitempty"`
	Type      string    `bson:"type"`
	FirstSeen time.Time `bson:"first_seen"`
	LastSeen  time.Time `bson:"last_seen"`
}
