// Package storage defines the optional persistence collaborator consumed by
// the delivery core: backends are notified of mutations for write-behind
// durability and may hydrate the in-memory state at startup.
package storage

import (
	"context"

	"chatcore/services/directory"
	"chatcore/services/messages"
)

// Provider receives mutation notifications. Implementations must tolerate
// duplicate notifications (chat creation is idempotent upstream).
type Provider interface {
	Name() string
	ChatCreated(ctx context.Context, chat directory.Chat) error
	MessageAppended(ctx context.Context, msg messages.Message) error
	MessageSeen(ctx context.Context, chatID, messageID, userID string) error
	ChatRefreshed(ctx context.Context, chatID string) error
}

// Snapshot is the persisted state handed back during hydration
type Snapshot struct {
	Chats    []directory.Chat
	Messages []messages.Message
}

// Hydrator is implemented by providers that can reload state at startup
type Hydrator interface {
	Hydrate(ctx context.Context) (*Snapshot, error)
}
