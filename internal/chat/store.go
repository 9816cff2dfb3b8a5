package chat

import "sync"

// Store is the ordered, deduplicated log of rendered messages for the
// active conversation, plus the conversation's high-water mark.
//
// The high-water mark is the highest message id ever merged and never
// decreases for the lifetime of a conversation; it is what scopes each
// retrieval request to messages the engine has not seen.
type Store struct {
	mu        sync.RWMutex
	messages  []Message
	ids       map[int64]struct{}
	highWater int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		ids: make(map[int64]struct{}),
	}
}

// Add appends a message to the log. Returns false if a message with the
// same id is already present.
func (s *Store) Add(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	s.ids[m.ID] = struct{}{}
	s.messages = append(s.messages, m)
	return true
}

// Contains reports whether a message id is in the log.
func (s *Store) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[id]
	return ok
}

// Messages returns a copy of the log in merge order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// HighWater returns the highest message id ever merged.
func (s *Store) HighWater() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.highWater
}

// AdvanceHighWater raises the high-water mark to id. Lower values are
// ignored so the mark is monotonic non-decreasing.
func (s *Store) AdvanceHighWater(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id > s.highWater {
		s.highWater = id
	}
}

// Reset clears the log and the high-water mark for a new conversation.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.ids = make(map[int64]struct{})
	s.highWater = 0
}
