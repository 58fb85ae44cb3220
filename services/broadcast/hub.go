// Package broadcast is the room hub: it authorizes chat-scoped events,
// mutates the shared state and fans the results out to every online session
// that should see them.
package broadcast

import (
	"sync"
	"time"

	"chatcore/apperrors"
	"chatcore/pkg/metrics"
	"chatcore/services/directory"
	"chatcore/services/events"
	"chatcore/services/messages"
	"chatcore/services/registry"
	"chatcore/storage"
)

// Hub coordinates the connection registry, chat directory and message store
// for the chat-scoped inbound events. Delivery of a chat event is
// membership-based: a member need not have joined the room to receive new
// messages. Fan-out always happens after the state mutation is committed and
// every lock released.
type Hub struct {
	reg      *registry.Registry
	dir      *directory.Directory
	store    *messages.Store
	sink     events.Sink
	notifier *storage.Notifier

	mu     sync.Mutex
	rooms  map[string]map[string]struct{} // chat id -> subscribed session ids
	joined map[string]map[string]struct{} // session id -> joined chat ids
}

func New(reg *registry.Registry, dir *directory.Directory, store *messages.Store, sink events.Sink, notifier *storage.Notifier) *Hub {
	return &Hub{
		reg:      reg,
		dir:      dir,
		store:    store,
		sink:     sink,
		notifier: notifier,
		rooms:    make(map[string]map[string]struct{}),
		joined:   make(map[string]map[string]struct{}),
	}
}

// JoinChat subscribes the session to a chat's room and marks the whole chat
// read for the user. Every newly seen message produces one read receipt to
// all online member sessions, the actor's other devices included.
func (h *Hub) JoinChat(sessionID, chatID string) error {
	userID, err := h.resolve(sessionID)
	if err != nil {
		return err
	}
	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	h.subscribe(sessionID, chatID)

	changed, err := h.store.MarkAllSeen(chatID, userID)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}

	h.dir.SetLastRead(chatID, userID, changed[len(changed)-1].ID, time.Now())

	recipients := h.memberSessions(chatID, "")
	for _, msg := range changed {
		h.notifier.MessageSeen(chatID, msg.ID, userID)

		receipt := events.NewReadReceipt(chatID, msg.ID, userID)
		for _, sid := range recipients {
			h.sink.Deliver(sid, receipt)
		}
		metrics.ReadReceipts.Inc()
	}

	return nil
}

// LeaveChat unsubscribes the session from a chat's room. Always succeeds,
// including when the session was never subscribed.
func (h *Hub) LeaveChat(sessionID, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropFromRoom(chatID, sessionID)
}

// SendMessage appends a message and delivers it to every online session of
// every chat member. The optional tempID is echoed back only on the copies
// delivered to the sender's own sessions.
func (h *Hub) SendMessage(sessionID, chatID, text, tempID string) (messages.Message, error) {
	userID, err := h.resolve(sessionID)
	if err != nil {
		return messages.Message{}, err
	}

	msg, err := h.store.Add(chatID, userID, text)
	if err != nil {
		return messages.Message{}, err
	}

	h.notifier.MessageAppended(msg)

	payload := events.MessagePayload{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		SentAt:    msg.SentAt,
		SeenBy:    msg.SeenBy,
	}
	echo := payload
	echo.TempID = tempID

	memberIDs, err := h.dir.MemberUserIDs(chatID)
	if err != nil {
		return msg, nil
	}

	for _, memberID := range memberIDs {
		data := payload
		if memberID == userID {
			data = echo
		}
		ev := &events.Event{Name: events.TypeMessage, Data: data}
		for _, sid := range h.reg.SessionsForUser(memberID) {
			h.sink.Deliver(sid, ev)
		}
	}

	return msg, nil
}

// MarkAsRead is the explicit single-message acknowledgment path. When the
// seen state changes, a read receipt goes to all online member sessions.
func (h *Hub) MarkAsRead(sessionID, chatID, messageID string) error {
	userID, err := h.resolve(sessionID)
	if err != nil {
		return err
	}
	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	changed, err := h.store.MarkSeen(chatID, userID, messageID)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	h.dir.SetLastRead(chatID, userID, messageID, time.Now())
	h.notifier.MessageSeen(chatID, messageID, userID)

	receipt := events.NewReadReceipt(chatID, messageID, userID)
	for _, sid := range h.memberSessions(chatID, "") {
		h.sink.Deliver(sid, receipt)
	}
	metrics.ReadReceipts.Inc()

	return nil
}

// Typing relays an ephemeral typing indicator to every other online member
// session. Never persisted, no acknowledgment, no retry.
func (h *Hub) Typing(sessionID, chatID string, isTyping bool) error {
	userID, err := h.resolve(sessionID)
	if err != nil {
		return err
	}
	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}

	ev := events.NewTyping(chatID, userID, isTyping)
	for _, sid := range h.memberSessions(chatID, sessionID) {
		h.sink.Deliver(sid, ev)
	}
	metrics.TypingEvents.Inc()

	return nil
}

// ForceRefresh re-broadcasts a cache-invalidation hint verbatim to every
// online member session, the origin included.
func (h *Hub) ForceRefresh(sessionID, chatID string) error {
	userID, err := h.resolve(sessionID)
	if err != nil {
		return err
	}
	if !h.dir.Exists(chatID) {
		return apperrors.NewChatNotFound(chatID)
	}
	if !h.dir.IsMember(chatID, userID) {
		return apperrors.NewNotMember(chatID, userID)
	}

	h.notifier.ChatRefreshed(chatID)

	ev := events.NewForceRefresh(chatID)
	for _, sid := range h.memberSessions(chatID, "") {
		h.sink.Deliver(sid, ev)
	}

	return nil
}

// DropSession removes the session from every room it had joined. Called on
// disconnect; idempotent.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for chatID := range h.joined[sessionID] {
		if room, ok := h.rooms[chatID]; ok {
			delete(room, sessionID)
			if len(room) == 0 {
				delete(h.rooms, chatID)
			}
		}
	}
	delete(h.joined, sessionID)
}

// JoinedChats returns the chat ids the session is currently subscribed to
func (h *Hub) JoinedChats(sessionID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := make([]string, 0, len(h.joined[sessionID]))
	for chatID := range h.joined[sessionID] {
		ids = append(ids, chatID)
	}
	return ids
}

// resolve maps a session id to its authenticated user
func (h *Hub) resolve(sessionID string) (string, error) {
	userID, ok := h.reg.UserForSession(sessionID)
	if !ok {
		return "", apperrors.NewUnauthenticated("Session is not connected")
	}
	return userID, nil
}

// subscribe adds the session to a chat's room
func (h *Hub) subscribe(sessionID, chatID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[chatID]
	if !ok {
		room = make(map[string]struct{})
		h.rooms[chatID] = room
	}
	room[sessionID] = struct{}{}

	joined, ok := h.joined[sessionID]
	if !ok {
		joined = make(map[string]struct{})
		h.joined[sessionID] = joined
	}
	joined[chatID] = struct{}{}
}

// dropFromRoom removes a session from one room; caller holds the lock
func (h *Hub) dropFromRoom(chatID, sessionID string) {
	if room, ok := h.rooms[chatID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.rooms, chatID)
		}
	}
	if joined, ok := h.joined[sessionID]; ok {
		delete(joined, chatID)
		if len(joined) == 0 {
			delete(h.joined, sessionID)
		}
	}
}

// memberSessions resolves the chat's recipient set: every online session of
// every member, minus an optional excluded session.
func (h *Hub) memberSessions(chatID, exclude string) []string {
	memberIDs, err := h.dir.MemberUserIDs(chatID)
	if err != nil {
		return nil
	}

	var sessions []string
	for _, memberID := range memberIDs {
		for _, sid := range h.reg.SessionsForUser(memberID) {
			if sid == exclude {
				continue
			}
			sessions = append(sessions, sid)
		}
	}
	return sessions
}
