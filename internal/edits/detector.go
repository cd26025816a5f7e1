package edits

import (
	"fmt"
	"strings"

	"susninja-bot/internal/cache"

	"github.com/rs/zerolog/log"
)

// MessageStore is the part of the message cache the detector needs.
type MessageStore interface {
	Get(chatID int64, messageID int) (cache.Record, bool)
	Add(chatID int64, rec cache.Record)
}

// Editor identifies who edited a message.
type Editor struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName returns the editor's full name, falling back to the username.
func (e Editor) DisplayName() string {
	name := e.FirstName
	if e.LastName != "" {
		if name != "" {
			name += " "
		}
		name += e.LastName
	}
	if name == "" {
		name = e.Username
	}
	if name == "" {
		name = "Unknown User"
	}
	return name
}

// Mention renders an HTML link to the editor's profile.
func (e Editor) Mention() string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, e.ID, htmlEscaper.Replace(e.DisplayName()))
}

// Outcome classifies the result of Detect.
type Outcome int

const (
	// OutcomeFirstSeen means no prior snapshot existed; the edit was cached as new.
	OutcomeFirstSeen Outcome = iota
	// OutcomeUnattributed means the edit has no known sender; the snapshot was refreshed silently.
	OutcomeUnattributed
	// OutcomeUnchanged means the compared text did not change.
	OutcomeUnchanged
	// OutcomeChanged means a session was stored and a notification is due.
	OutcomeChanged
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFirstSeen:
		return "first_seen"
	case OutcomeUnattributed:
		return "unattributed"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeChanged:
		return "changed"
	default:
		return "unknown"
	}
}

// Detection is what Detect reports back to the caller.
type Detection struct {
	Outcome Outcome
	Key     Key
	Session Session
}

// Detector compares edits with cached snapshots and records diff sessions.
type Detector struct {
	messages MessageStore
	sessions *Store
}

// NewDetector wires a detector to its stores.
func NewDetector(messages MessageStore, sessions *Store) *Detector {
	return &Detector{messages: messages, sessions: sessions}
}

// Detect processes one edit event. edit must carry the new text and sender
// fields; editor is the user who performed the edit.
func (d *Detector) Detect(edit cache.Record, editor Editor) Detection {
	key := Key{ChatID: edit.ChatID, MessageID: edit.MessageID}
	logger := log.With().Int64("chat_id", key.ChatID).Int("message_id", key.MessageID).Logger()

	original, ok := d.messages.Get(key.ChatID, key.MessageID)
	if !ok {
		logger.Debug().Msg("Original message not in cache, caching edited version")
		d.messages.Add(key.ChatID, edit)
		return Detection{Outcome: OutcomeFirstSeen, Key: key}
	}

	if editor.ID == 0 {
		d.messages.Add(key.ChatID, edit)
		return Detection{Outcome: OutcomeUnattributed, Key: key}
	}

	originalText := Truncate(original.Text, MaxCompareLength)
	newText := Truncate(edit.Text, MaxCompareLength)
	if originalText == newText {
		logger.Debug().Msg("Edit without text change ignored")
		return Detection{Outcome: OutcomeUnchanged, Key: key}
	}

	session := Session{
		OriginalEscaped: EscapeHTML(originalText),
		NewEscaped:      EscapeHTML(newText),
		EditorID:        editor.ID,
		EditorMention:   editor.Mention(),
	}
	d.sessions.Put(key, session)
	d.messages.Add(key.ChatID, edit)

	stored, _ := d.sessions.Get(key)
	logger.Info().Int64("user_id", editor.ID).Msg("Message edit detected")
	return Detection{Outcome: OutcomeChanged, Key: key, Session: stored}
}

// IsExpanded reports whether a rendered notification currently shows the diff.
func IsExpanded(text string) bool {
	return strings.Contains(text, "From:") && strings.Contains(text, "To:")
}
