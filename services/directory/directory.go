// Package directory is the catalog of chats and their memberships.
package directory

import (
	"sort"
	"sync"
	"time"

	"chatcore/apperrors"
	"chatcore/pkg/metrics"

	"github.com/google/uuid"
)

// Recency reports the timestamp of a chat's most recent message. It is
// implemented by the message store and drives the ChatsForUser ordering.
type Recency interface {
	LastActivity(chatID string) (time.Time, bool)
}

type chatState struct {
	id        string
	chatType  ChatType
	name      string
	createdAt time.Time
	members   []*Member // insertion order
}

// Directory owns the chat catalog, the canonical pair index for one-on-one
// chats and the per-user chat lists. It is initialized once at startup and
// accessed only through its methods.
type Directory struct {
	mu      sync.RWMutex
	chats   map[string]*chatState
	pairs   map[pairKey]string  // unordered user pair -> chat id
	byUser  map[string][]string // user id -> chat ids, insertion order
	recency Recency
	now     func() time.Time
}

func New() *Directory {
	return &Directory{
		chats:  make(map[string]*chatState),
		pairs:  make(map[pairKey]string),
		byUser: make(map[string][]string),
		now:    time.Now,
	}
}

// SetRecency binds the message recency source. Called once during startup
// wiring, before any traffic.
func (d *Directory) SetRecency(r Recency) {
	d.recency = r
}

// CreateOneOnOne returns the one-on-one chat between two users, creating it
// if the pair has none yet. Argument order is irrelevant; the returned bool
// reports whether a new chat was created.
func (d *Directory) CreateOneOnOne(userA, userB string) (Chat, bool, error) {
	if userA == "" || userB == "" {
		return Chat{}, false, apperrors.NewInvalidArgument("Both user ids are required")
	}
	if userA == userB {
		return Chat{}, false, apperrors.NewInvalidArgument("Cannot create a one-on-one chat with a single user")
	}

	key := newPairKey(userA, userB)

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.pairs[key]; ok {
		return d.snapshot(d.chats[id]), false, nil
	}

	cs := &chatState{
		id:        uuid.NewString(),
		chatType:  ChatTypeOneOnOne,
		createdAt: d.now(),
	}
	d.addMember(cs, userA)
	d.addMember(cs, userB)

	d.chats[cs.id] = cs
	d.pairs[key] = cs.id

	metrics.ChatsCreated.WithLabelValues(string(ChatTypeOneOnOne)).Inc()

	return d.snapshot(cs), true, nil
}

// CreateGroup creates a group chat containing the creator plus the
// deduplicated member list. Name is optional free text.
func (d *Directory) CreateGroup(creatorID string, memberIDs []string, name string) (Chat, error) {
	if creatorID == "" {
		return Chat{}, apperrors.NewInvalidArgument("Creator id is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cs := &chatState{
		id:        uuid.NewString(),
		chatType:  ChatTypeGroup,
		name:      name,
		createdAt: d.now(),
	}
	d.addMember(cs, creatorID)
	for _, id := range memberIDs {
		if id == "" {
			continue
		}
		d.addMember(cs, id)
	}

	d.chats[cs.id] = cs

	metrics.ChatsCreated.WithLabelValues(string(ChatTypeGroup)).Inc()

	return d.snapshot(cs), nil
}

// addMember appends a member unless already present; caller holds the lock
func (d *Directory) addMember(cs *chatState, userID string) {
	for _, m := range cs.members {
		if m.UserID == userID {
			return
		}
	}
	cs.members = append(cs.members, &Member{
		UserID:   userID,
		ChatID:   cs.id,
		JoinedAt: d.now(),
	})
	d.byUser[userID] = append(d.byUser[userID], cs.id)
}

// Exists reports whether a chat id is known
func (d *Directory) Exists(chatID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.chats[chatID]
	return ok
}

// IsMember is the authorization gate for every chat-scoped operation
func (d *Directory) IsMember(chatID, userID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cs, ok := d.chats[chatID]
	if !ok {
		return false
	}
	for _, m := range cs.members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Chat returns a snapshot of a chat including its members
func (d *Directory) Chat(chatID string) (Chat, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cs, ok := d.chats[chatID]
	if !ok {
		return Chat{}, apperrors.NewChatNotFound(chatID)
	}
	return d.snapshot(cs), nil
}

// Members returns a chat's members in join order
func (d *Directory) Members(chatID string) ([]Member, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	cs, ok := d.chats[chatID]
	if !ok {
		return nil, apperrors.NewChatNotFound(chatID)
	}

	members := make([]Member, len(cs.members))
	for i, m := range cs.members {
		members[i] = *m
	}
	return members, nil
}

// MemberUserIDs returns the user ids of a chat's members
func (d *Directory) MemberUserIDs(chatID string) ([]string, error) {
	members, err := d.Members(chatID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// ChatsForUser returns the user's chats ordered by most recent message
// descending. A chat with no messages sorts as if its timestamp were the
// epoch, i.e. last.
func (d *Directory) ChatsForUser(userID string) []Chat {
	d.mu.RLock()
	chats := make([]Chat, 0, len(d.byUser[userID]))
	for _, id := range d.byUser[userID] {
		chats = append(chats, d.snapshot(d.chats[id]))
	}
	d.mu.RUnlock()

	// Recency lookups happen outside the directory lock; the store owns its
	// own synchronization.
	activity := make(map[string]time.Time, len(chats))
	for _, c := range chats {
		if d.recency != nil {
			if at, ok := d.recency.LastActivity(c.ID); ok {
				activity[c.ID] = at
				continue
			}
		}
		activity[c.ID] = time.Time{}
	}

	sort.SliceStable(chats, func(i, j int) bool {
		return activity[chats[i].ID].After(activity[chats[j].ID])
	})

	return chats
}

// SetLastRead advances a member's read marker
func (d *Directory) SetLastRead(chatID, userID, messageID string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cs, ok := d.chats[chatID]
	if !ok {
		return
	}
	for _, m := range cs.members {
		if m.UserID == userID {
			m.LastReadMessageID = messageID
			m.LastReadAt = at
			return
		}
	}
}

// Load hydrates the directory from a persistence snapshot. Meant to run once
// at startup, before any traffic.
func (d *Directory) Load(chats []Chat) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, c := range chats {
		if _, ok := d.chats[c.ID]; ok {
			continue
		}

		cs := &chatState{
			id:        c.ID,
			chatType:  c.Type,
			name:      c.Name,
			createdAt: c.CreatedAt,
		}
		for _, m := range c.Members {
			mc := m
			mc.ChatID = c.ID
			cs.members = append(cs.members, &mc)
			d.byUser[m.UserID] = append(d.byUser[m.UserID], c.ID)
		}

		d.chats[c.ID] = cs
		if c.Type == ChatTypeOneOnOne && len(cs.members) == 2 {
			d.pairs[newPairKey(cs.members[0].UserID, cs.members[1].UserID)] = c.ID
		}
	}
}

// snapshot copies a chat state; caller holds at least a read lock
func (d *Directory) snapshot(cs *chatState) Chat {
	c := Chat{
		ID:        cs.id,
		Type:      cs.chatType,
		Name:      cs.name,
		CreatedAt: cs.createdAt,
		Members:   make([]Member, len(cs.members)),
	}
	for i, m := range cs.members {
		c.Members[i] = *m
	}
	return c
}
