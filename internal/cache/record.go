package cache

import "time"

// Record is a snapshot of one message at the time it was sent or last edited.
type Record struct {
	ChatID    int64 // Chat the message belongs to.
	MessageID int   // Unique within ChatID.
	Text      string // Message text, or caption for media. Stored untruncated.

	AuthorID        *int64 // Nil for anonymous senders.
	AuthorUsername  string
	AuthorFirstName string
	AuthorLastName  string

	InsertedAt       time.Time // When the snapshot entered the cache. Drives TTL expiry.
	Date             int64     // Platform send time (unix seconds), informational.
	ReplyToMessageID *int
}

// Age returns how long the record has been cached at instant now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.InsertedAt)
}
