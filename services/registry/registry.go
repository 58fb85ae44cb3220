// Package registry tracks live session to user bindings.
package registry

import (
	"sync"

	"chatcore/pkg/metrics"
)

// Registry maps live connection ids to authenticated user ids. A user may
// own any number of concurrent sessions (multi-device).
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]string              // sessionID -> userID
	users    map[string]map[string]struct{} // userID -> live session ids
}

func New() *Registry {
	return &Registry{
		sessions: make(map[string]string),
		users:    make(map[string]map[string]struct{}),
	}
}

// Register binds or rebinds a session to a user. Reusing a session id
// overwrites the previous binding.
func (r *Registry) Register(sessionID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.sessions[sessionID]; ok {
		r.dropBinding(prev, sessionID)
	}

	r.sessions[sessionID] = userID
	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[sessionID] = struct{}{}

	r.updateGauges()
}

// Unregister removes a session binding and returns the previously bound
// user id. Unknown session ids are a no-op.
func (r *Registry) Unregister(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}

	delete(r.sessions, sessionID)
	r.dropBinding(userID, sessionID)
	r.updateGauges()

	return userID, true
}

// UserForSession resolves a session id to its bound user
func (r *Registry) UserForSession(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.sessions[sessionID]
	return userID, ok
}

// SessionsForUser returns every live session id bound to a user
func (r *Registry) SessionsForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether at least one session is bound to the user
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.users[userID]) > 0
}

// Sessions returns every live session id
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// OnlineUsers returns every user with at least one live session
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.users))
	for id := range r.users {
		users = append(users, id)
	}
	return users
}

// dropBinding removes sessionID from a user's session set; caller holds the lock
func (r *Registry) dropBinding(userID, sessionID string) {
	set, ok := r.users[userID]
	if !ok {
		return
	}
	delete(set, sessionID)
	if len(set) == 0 {
		delete(r.users, userID)
	}
}

// updateGauges refreshes prometheus gauges; caller holds the lock
func (r *Registry) updateGauges() {
	metrics.SessionsOnline.Set(float64(len(r.sessions)))
	metrics.UsersOnline.Set(float64(len(r.users)))
}
