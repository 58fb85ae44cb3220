// Package messages holds the per-chat append-only message logs and their
// seen-by state.
package messages

import (
	"sort"
	"sync"
	"time"

	"chatcore/apperrors"
	"chatcore/pkg/metrics"

	"github.com/google/uuid"
)

// Membership is the slice of the chat directory the store needs to gate
// appends.
type Membership interface {
	Exists(chatID string) bool
	IsMember(chatID, userID string) bool
}

// Message is a snapshot of one stored message. SeenBy never contains the
// sender: a sender implicitly sees their own message at send time.
type Message struct {
	ID       string    `json:"messageId"`
	ChatID   string    `json:"chatId"`
	SenderID string    `json:"senderId"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sentAt"`
	SeenBy   []string  `json:"seenBy"`
}

type record struct {
	id       string
	chatID   string
	senderID string
	text     string
	sentAt   time.Time
	seenBy   map[string]struct{}
}

// Store owns every chat's message log. Messages are immutable except for
// seen-by growth; insertion order is the canonical ordering.
type Store struct {
	mu         sync.RWMutex
	membership Membership
	byChat     map[string][]*record
	byID       map[string]*record
	now        func() time.Time
}

func New(membership Membership) *Store {
	return &Store{
		membership: membership,
		byChat:     make(map[string][]*record),
		byID:       make(map[string]*record),
		now:        time.Now,
	}
}

// Add appends a message to a chat's log. The sender must be a member; the
// message is visible to subsequent reads immediately.
func (s *Store) Add(chatID, senderID, text string) (Message, error) {
	if chatID == "" {
		return Message{}, apperrors.NewInvalidArgument("Chat id is required")
	}
	if text == "" {
		return Message{}, apperrors.NewInvalidArgument("Message text is required")
	}
	if !s.membership.Exists(chatID) {
		return Message{}, apperrors.NewChatNotFound(chatID)
	}
	if !s.membership.IsMember(chatID, senderID) {
		return Message{}, apperrors.NewNotMember(chatID, senderID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &record{
		id:       uuid.NewString(),
		chatID:   chatID,
		senderID: senderID,
		text:     text,
		sentAt:   s.now(),
		seenBy:   make(map[string]struct{}),
	}
	s.byChat[chatID] = append(s.byChat[chatID], rec)
	s.byID[rec.id] = rec

	metrics.MessagesAppended.Inc()

	return rec.snapshot(), nil
}

// MarkSeen marks one message as seen by a user. It reports false (unchanged)
// when the user is the sender or has already seen the message.
func (s *Store) MarkSeen(chatID, userID, messageID string) (bool, error) {
	if !s.membership.Exists(chatID) {
		return false, apperrors.NewChatNotFound(chatID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[messageID]
	if !ok || rec.chatID != chatID {
		return false, apperrors.NewMessageNotFound(messageID)
	}

	return rec.markSeen(userID), nil
}

// MarkAllSeen marks every message in the chat as seen by the user, in order,
// and returns the messages whose state actually changed.
func (s *Store) MarkAllSeen(chatID, userID string) ([]Message, error) {
	if !s.membership.Exists(chatID) {
		return nil, apperrors.NewChatNotFound(chatID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []Message
	for _, rec := range s.byChat[chatID] {
		if rec.markSeen(userID) {
			changed = append(changed, rec.snapshot())
		}
	}
	return changed, nil
}

// UnreadCount counts messages the user has neither sent nor seen
func (s *Store) UnreadCount(chatID, userID string) (int, error) {
	if !s.membership.Exists(chatID) {
		return 0, apperrors.NewChatNotFound(chatID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.byChat[chatID] {
		if rec.senderID == userID {
			continue
		}
		if _, seen := rec.seenBy[userID]; !seen {
			count++
		}
	}
	return count, nil
}

// List returns a chat's messages in insertion order
func (s *Store) List(chatID string) ([]Message, error) {
	if !s.membership.Exists(chatID) {
		return nil, apperrors.NewChatNotFound(chatID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.byChat[chatID]
	msgs := make([]Message, len(recs))
	for i, rec := range recs {
		msgs[i] = rec.snapshot()
	}
	return msgs, nil
}

// LastActivity reports the sent time of a chat's newest message
func (s *Store) LastActivity(chatID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.byChat[chatID]
	if len(recs) == 0 {
		return time.Time{}, false
	}
	return recs[len(recs)-1].sentAt, true
}

// Load hydrates the store from a persistence snapshot. Messages must arrive
// in their original insertion order per chat. Meant to run once at startup.
func (s *Store) Load(msgs []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		if _, ok := s.byID[m.ID]; ok {
			continue
		}

		rec := &record{
			id:       m.ID,
			chatID:   m.ChatID,
			senderID: m.SenderID,
			text:     m.Text,
			sentAt:   m.SentAt,
			seenBy:   make(map[string]struct{}, len(m.SeenBy)),
		}
		for _, userID := range m.SeenBy {
			if userID == m.SenderID {
				continue
			}
			rec.seenBy[userID] = struct{}{}
		}

		s.byChat[m.ChatID] = append(s.byChat[m.ChatID], rec)
		s.byID[m.ID] = rec
	}
}

// markSeen applies the seen rule to one record; caller holds the write lock
func (r *record) markSeen(userID string) bool {
	if userID == r.senderID {
		return false
	}
	if _, ok := r.seenBy[userID]; ok {
		return false
	}
	r.seenBy[userID] = struct{}{}
	return true
}

// snapshot copies a record; caller holds at least a read lock
func (r *record) snapshot() Message {
	seen := make([]string, 0, len(r.seenBy))
	for userID := range r.seenBy {
		seen = append(seen, userID)
	}
	sort.Strings(seen)

	return Message{
		ID:       r.id,
		ChatID:   r.chatID,
		SenderID: r.senderID,
		Text:     r.text,
		SentAt:   r.sentAt,
		SeenBy:   seen,
	}
}
