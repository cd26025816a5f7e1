package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultMaxPerChat limits the number of snapshots retained per chat.
	DefaultMaxPerChat = 1000
	// DefaultTTL is how long a snapshot stays eligible for edit diffing.
	DefaultTTL = time.Hour
	// DefaultCleanupInterval is the minimum spacing between two expiry passes.
	DefaultCleanupInterval = 5 * time.Minute
)

// Config holds the limits of a MessageCache. Non-positive values fall back to defaults.
type Config struct {
	MaxPerChat      int
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultConfig returns the stock cache limits.
func DefaultConfig() Config {
	return Config{
		MaxPerChat:      DefaultMaxPerChat,
		TTL:             DefaultTTL,
		CleanupInterval: DefaultCleanupInterval,
	}
}

func (c Config) normalized() Config {
	if c.MaxPerChat <= 0 {
		c.MaxPerChat = DefaultMaxPerChat
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Option mutates cache construction.
type Option func(*MessageCache)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(c *MessageCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// chatState is the per-chat container. records and order always hold the same
// set of message ids; order is oldest-first.
type chatState struct {
	records map[int]*entry
	order   *list.List // of int message ids
	tracked map[int]struct{}
}

type entry struct {
	record Record
	elem   *list.Element
}

func newChatState() *chatState {
	return &chatState{
		records: make(map[int]*entry),
		order:   list.New(),
		tracked: make(map[int]struct{}),
	}
}

// drop removes messageID from every per-chat index. Ids missing from the
// order sequence are tolerated.
func (s *chatState) drop(messageID int) (Record, bool) {
	e, ok := s.records[messageID]
	if !ok {
		delete(s.tracked, messageID)
		return Record{}, false
	}
	delete(s.records, messageID)
	if e.elem != nil {
		s.order.Remove(e.elem)
	}
	delete(s.tracked, messageID)
	return e.record, true
}

// CleanupResult describes one CleanupExpired call.
type CleanupResult struct {
	Ran          bool // False when the call was rate-limited.
	Expired      int  // Records removed for exceeding the TTL.
	ChatsCleaned int  // Chats that lost at least one record.
	ChatsDropped int  // Chats whose whole state was released.
}

// Stats is a point-in-time summary of the cache.
type Stats struct {
	Chats       int
	Messages    int
	LastCleanup time.Time
}

// MessageCache is a bounded, per-chat, TTL-aware store of recent message
// snapshots. All methods are safe for concurrent use and each one applies its
// mutation atomically.
type MessageCache struct {
	cfg   Config
	clock func() time.Time

	mu          sync.Mutex
	chats       map[int64]*chatState
	lastCleanup time.Time
}

// New creates an empty cache.
func New(cfg Config, options ...Option) *MessageCache {
	c := &MessageCache{
		cfg:   cfg.normalized(),
		clock: time.Now,
		chats: make(map[int64]*chatState),
	}
	for _, option := range options {
		option(c)
	}
	c.lastCleanup = c.clock()

	log.Info().
		Int("max_per_chat", c.cfg.MaxPerChat).
		Dur("ttl", c.cfg.TTL).
		Dur("cleanup_interval", c.cfg.CleanupInterval).
		Msg("Message cache initialized")
	return c
}

// Config returns the effective limits.
func (c *MessageCache) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// Add inserts rec under (chatID, rec.MessageID) or overwrites an existing
// snapshot in place. When the chat is full and the id is new, the oldest
// snapshot is evicted first. A zero InsertedAt is stamped with the current time.
func (c *MessageCache) Add(chatID int64, rec Record) {
	if c == nil {
		return
	}
	if chatID == 0 || rec.MessageID == 0 {
		log.Warn().Int64("chat_id", chatID).Int("message_id", rec.MessageID).Msg("Refusing to cache malformed message")
		return
	}
	rec.ChatID = chatID
	if rec.InsertedAt.IsZero() {
		rec.InsertedAt = c.clock()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		state = newChatState()
		c.chats[chatID] = state
	}
	state.tracked[rec.MessageID] = struct{}{}

	if existing, ok := state.records[rec.MessageID]; ok {
		existing.record = rec
		log.Debug().Int64("chat_id", chatID).Int("message_id", rec.MessageID).Msg("Cached message refreshed")
		return
	}

	if state.order.Len() >= c.cfg.MaxPerChat {
		if oldest := state.order.Front(); oldest != nil {
			oldestID := oldest.Value.(int)
			state.drop(oldestID)
			log.Debug().Int64("chat_id", chatID).Int("message_id", oldestID).Msg("Evicted oldest message due to size limit")
		}
	}

	state.records[rec.MessageID] = &entry{
		record: rec,
		elem:   state.order.PushBack(rec.MessageID),
	}
	log.Debug().
		Int64("chat_id", chatID).
		Int("message_id", rec.MessageID).
		Int("chat_size", state.order.Len()).
		Msg("Message cached")
}

// Get returns the snapshot for (chatID, messageID). It never mutates order or TTL.
func (c *MessageCache) Get(chatID int64, messageID int) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		return Record{}, false
	}
	e, ok := state.records[messageID]
	if !ok {
		return Record{}, false
	}
	return e.record, true
}

// Remove deletes the snapshot for (chatID, messageID) and returns it.
func (c *MessageCache) Remove(chatID int64, messageID int) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		return Record{}, false
	}
	rec, ok := state.drop(messageID)
	if ok {
		log.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Msg("Message removed from cache")
	}
	return rec, ok
}

// CleanupExpired removes every snapshot older than the TTL, across all known
// chats, and releases chats left empty. It is a no-op until CleanupInterval
// has elapsed since the previous run (construction counts as a run).
func (c *MessageCache) CleanupExpired() CleanupResult {
	if c == nil {
		return CleanupResult{}
	}
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if since := now.Sub(c.lastCleanup); since < c.cfg.CleanupInterval {
		log.Debug().Dur("since_last", since).Msg("Cleanup skipped")
		return CleanupResult{}
	}

	result := CleanupResult{Ran: true}
	for chatID, state := range c.chats {
		var expired []int
		for messageID, e := range state.records {
			if e.record.Age(now) > c.cfg.TTL {
				expired = append(expired, messageID)
			}
		}
		if len(expired) > 0 {
			for _, messageID := range expired {
				state.drop(messageID)
			}
			result.Expired += len(expired)
			result.ChatsCleaned++
		}
		if len(state.records) == 0 {
			delete(c.chats, chatID)
			result.ChatsDropped++
		}
	}
	c.lastCleanup = now

	if result.Expired > 0 {
		log.Info().
			Int("expired", result.Expired).
			Int("chats_cleaned", result.ChatsCleaned).
			Int("chats_dropped", result.ChatsDropped).
			Msg("Cache cleanup completed")
	} else {
		log.Debug().Msg("Cache cleanup completed: no expired messages")
	}
	return result
}

// SweepTracking forgets ids older than window from the chat's tracking set.
// Snapshots themselves are left alone. It returns how many ids were dropped.
func (c *MessageCache) SweepTracking(chatID int64, window time.Duration) int {
	if c == nil {
		return 0
	}
	now := c.clock()

	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		return 0
	}
	swept := 0
	for messageID, e := range state.records {
		if _, tracked := state.tracked[messageID]; tracked && e.record.Age(now) > window {
			delete(state.tracked, messageID)
			swept++
		}
	}
	return swept
}

// Tracked reports whether messageID is in the chat's tracking set.
func (c *MessageCache) Tracked(chatID int64, messageID int) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		return false
	}
	_, tracked := state.tracked[messageID]
	return tracked
}

// Len returns the number of snapshots held for chatID.
func (c *MessageCache) Len(chatID int64) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if state, ok := c.chats[chatID]; ok {
		return len(state.records)
	}
	return 0
}

// OrderedIDs returns the chat's message ids, oldest first.
func (c *MessageCache) OrderedIDs(chatID int64) []int {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.chats[chatID]
	if !ok {
		return nil
	}
	ids := make([]int, 0, state.order.Len())
	for e := state.order.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(int))
	}
	return ids
}

// Total returns the number of snapshots across all chats.
func (c *MessageCache) Total() int {
	return c.Stats().Messages
}

// Chats returns how many chats currently hold state.
func (c *MessageCache) Chats() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chats)
}

// ChatIDs returns the chats that currently hold state.
func (c *MessageCache) ChatIDs() []int64 {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]int64, 0, len(c.chats))
	for id := range c.chats {
		ids = append(ids, id)
	}
	return ids
}

// Stats summarizes cache occupancy.
func (c *MessageCache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{Chats: len(c.chats), LastCleanup: c.lastCleanup}
	for _, state := range c.chats {
		stats.Messages += len(state.records)
	}
	return stats
}
