// Package presence handles the connect/disconnect transitions of live
// sessions and the global presence broadcasts they trigger.
package presence

import (
	"chatcore/auth"
	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/services/events"
	"chatcore/services/registry"
)

// Service authenticates connecting sessions, keeps the connection registry
// current and announces status changes to every connected session. The
// system-wide scope of presence broadcasts is intentional.
type Service struct {
	auth auth.Provider
	reg  *registry.Registry
	sink events.Sink
}

func New(provider auth.Provider, reg *registry.Registry, sink events.Sink) *Service {
	return &Service{
		auth: provider,
		reg:  reg,
		sink: sink,
	}
}

// Connect resolves the session's credentials, registers the binding and
// broadcasts the user's online status. Returns the resolved user id.
func (s *Service) Connect(sessionID, credentials string) (string, error) {
	userID, err := s.auth.Authenticate(credentials)
	if err != nil {
		return "", err
	}

	s.reg.Register(sessionID, userID)
	metrics.SessionsConnected.Inc()

	logger.WithFields(map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("session connected")

	s.broadcast(events.NewPresenceUpdate(userID, events.StatusOnline))

	return userID, nil
}

// Disconnect removes the session binding and broadcasts the user's offline
// status. Idempotent: a session that was never registered, or already
// unregistered, produces no broadcast.
func (s *Service) Disconnect(sessionID string) (string, bool) {
	userID, ok := s.reg.Unregister(sessionID)
	if !ok {
		return "", false
	}

	logger.WithFields(map[string]any{
		"session_id": sessionID,
		"user_id":    userID,
	}).Info("session disconnected")

	s.broadcast(events.NewPresenceUpdate(userID, events.StatusOffline))

	return userID, true
}

// broadcast delivers a presence event to every connected session
func (s *Service) broadcast(ev *events.Event) {
	for _, sessionID := range s.reg.Sessions() {
		s.sink.Deliver(sessionID, ev)
	}
}
