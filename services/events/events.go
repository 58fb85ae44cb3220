// Package events defines the outbound event vocabulary shared by the
// delivery services and the transport layer.
package events

import "time"

// Type identifies an outbound event
type Type string

const (
	TypePresenceUpdate Type = "presence_update"
	TypeMessage        Type = "message"
	TypeMarkAsRead     Type = "mark_as_read"
	TypeTyping         Type = "typing"
	TypeForceRefresh   Type = "force_refresh"
	TypeError          Type = "error"
)

// PresenceStatus is a user's global online/offline status
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// Event is one outbound frame addressed to a session
type Event struct {
	Name Type `json:"event"`
	Data any  `json:"data"`
}

// PresencePayload announces a user's status change system-wide
type PresencePayload struct {
	UserID string         `json:"userId"`
	Status PresenceStatus `json:"status"`
}

// MessagePayload carries a delivered chat message. TempID is set only on
// copies delivered to the sending user's own sessions.
type MessagePayload struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sentAt"`
	SeenBy    []string  `json:"seenBy"`
	TempID    string    `json:"tempId,omitempty"`
}

// ReadReceiptPayload reports that a user has seen a message
type ReadReceiptPayload struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	UserID    string `json:"userId"`
}

// TypingPayload is an ephemeral typing indicator
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
	Typing bool   `json:"typing"`
}

// RefreshPayload is a cache-invalidation hint relayed verbatim
type RefreshPayload struct {
	ChatID string `json:"chatId"`
}

// ErrorPayload reports a rejected inbound event to its origin session
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewPresenceUpdate(userID string, status PresenceStatus) *Event {
	return &Event{Name: TypePresenceUpdate, Data: PresencePayload{UserID: userID, Status: status}}
}

func NewReadReceipt(chatID, messageID, userID string) *Event {
	return &Event{Name: TypeMarkAsRead, Data: ReadReceiptPayload{ChatID: chatID, MessageID: messageID, UserID: userID}}
}

func NewTyping(chatID, userID string, typing bool) *Event {
	return &Event{Name: TypeTyping, Data: TypingPayload{ChatID: chatID, UserID: userID, Typing: typing}}
}

func NewForceRefresh(chatID string) *Event {
	return &Event{Name: TypeForceRefresh, Data: RefreshPayload{ChatID: chatID}}
}

func NewError(code, message string) *Event {
	return &Event{Name: TypeError, Data: ErrorPayload{Code: code, Message: message}}
}

// Sink delivers events to live sessions. Delivery is best-effort: an event
// for a session that is gone, or whose send queue is full, is dropped.
type Sink interface {
	Deliver(sessionID string, ev *Event)
}
