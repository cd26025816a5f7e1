package edits

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultSessionTTL bounds how long a notification stays interactive.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultMaxSessions caps the number of pending sessions.
	DefaultMaxSessions = 10000
)

// Key identifies the edited message a session belongs to.
type Key struct {
	ChatID    int64
	MessageID int
}

// Session is the pending diff view behind one edit notification.
type Session struct {
	OriginalEscaped string
	NewEscaped      string
	EditorID        int64
	EditorMention   string
	CreatedAt       time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the clock used for expiry.
func WithStoreClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

type storeEntry struct {
	key     Key
	session Session
}

// Store holds one Session per edited message. Entries expire after the TTL
// and the oldest entry is evicted once the cap is reached.
type Store struct {
	ttl        time.Duration
	maxEntries int
	clock      func() time.Time

	mu      sync.Mutex
	order   *list.List
	entries map[Key]*list.Element
}

// NewStore creates an empty session store. Non-positive limits use defaults.
func NewStore(ttl time.Duration, maxEntries int, options ...StoreOption) *Store {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxSessions
	}
	s := &Store{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      time.Now,
		order:      list.New(),
		entries:    make(map[Key]*list.Element),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Put stores session under key, replacing any previous one.
func (s *Store) Put(key Key, session Session) {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.clock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		elem.Value = storeEntry{key: key, session: session}
		s.order.MoveToBack(elem)
		return
	}

	for s.order.Len() >= s.maxEntries {
		oldest := s.order.Front()
		evicted := s.order.Remove(oldest).(storeEntry)
		delete(s.entries, evicted.key)
		log.Debug().
			Int64("chat_id", evicted.key.ChatID).
			Int("message_id", evicted.key.MessageID).
			Msg("Evicted edit session due to size limit")
	}
	s.entries[key] = s.order.PushBack(storeEntry{key: key, session: session})
}

// Get returns the session for key. Expired sessions read as absent.
func (s *Store) Get(key Key) (Session, bool) {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return Session{}, false
	}
	session := elem.Value.(storeEntry).session
	if now.Sub(session.CreatedAt) > s.ttl {
		return Session{}, false
	}
	return session, true
}

// Delete removes the session for key if present.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.order.Remove(elem)
		delete(s.entries, key)
	}
}

// Prune drops expired sessions and returns how many were removed.
func (s *Store) Prune() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for elem := s.order.Front(); elem != nil; {
		next := elem.Next()
		entry := elem.Value.(storeEntry)
		if now.Sub(entry.session.CreatedAt) > s.ttl {
			s.order.Remove(elem)
			delete(s.entries, entry.key)
			pruned++
		}
		elem = next
	}
	return pruned
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
