package directory

import "time"

// ChatType is the closed set of chat kinds
type ChatType string

const (
	ChatTypeOneOnOne ChatType = "one_on_one"
	ChatTypeGroup    ChatType = "group"
)

// Chat is a snapshot of a conversation entity. Name is set only for groups.
type Chat struct {
	ID        string    `json:"chatId"`
	Type      ChatType  `json:"chatType"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Members   []Member  `json:"members,omitempty"`
}

// Member binds a user to a chat together with its read state. Members are
// created when a user is added to a chat and live as long as the chat.
type Member struct {
	UserID            string    `json:"userId"`
	ChatID            string    `json:"chatId"`
	JoinedAt          time.Time `json:"joinedAt"`
	LastReadMessageID string    `json:"lastReadMessageId,omitempty"`
	LastReadAt        time.Time `json:"lastReadAt,omitempty"`
}

// pairKey is the canonical unordered key of a one-on-one chat
type pairKey struct {
	low, high string
}

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{low: a, high: b}
}
