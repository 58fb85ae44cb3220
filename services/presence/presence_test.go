package presence_test

import (
	"testing"

	"chatcore/apperrors"
	"chatcore/auth"
	"chatcore/services/events"
	"chatcore/services/presence"
	"chatcore/services/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	deliveries map[string][]*events.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{deliveries: make(map[string][]*events.Event)}
}

func (r *recordingSink) Deliver(sessionID string, ev *events.Event) {
	r.deliveries[sessionID] = append(r.deliveries[sessionID], ev)
}

func (r *recordingSink) statusesFor(sessionID string) []events.PresenceStatus {
	var statuses []events.PresenceStatus
	for _, ev := range r.deliveries[sessionID] {
		if payload, ok := ev.Data.(events.PresencePayload); ok {
			statuses = append(statuses, payload.Status)
		}
	}
	return statuses
}

func TestConnectBroadcastsOnline(t *testing.T) {
	reg := registry.New()
	sink := newRecordingSink()
	svc := presence.New(auth.InsecureProvider{}, reg, sink)

	_, err := svc.Connect("s1", "alice")
	require.NoError(t, err)

	userID, err := svc.Connect("s2", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", userID)
	assert.True(t, reg.IsOnline("bob"))

	// Bob's arrival reaches every connected session, his own included
	assert.Equal(t, []events.PresenceStatus{events.StatusOnline}, sink.statusesFor("s2"))
	assert.Contains(t, sink.statusesFor("s1"), events.StatusOnline)
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	reg := registry.New()
	sink := newRecordingSink()
	svc := presence.New(auth.InsecureProvider{}, reg, sink)

	_, err := svc.Connect("s1", "")
	assert.Equal(t, apperrors.ErrCodeUnauthenticated, apperrors.CodeOf(err))
	assert.Empty(t, reg.Sessions())
	assert.Empty(t, sink.deliveries)
}

func TestDisconnectBroadcastsOffline(t *testing.T) {
	reg := registry.New()
	sink := newRecordingSink()
	svc := presence.New(auth.InsecureProvider{}, reg, sink)

	_, err := svc.Connect("s1", "alice")
	require.NoError(t, err)
	_, err = svc.Connect("s2", "bob")
	require.NoError(t, err)

	userID, ok := svc.Disconnect("s2")
	assert.True(t, ok)
	assert.Equal(t, "bob", userID)
	assert.False(t, reg.IsOnline("bob"))
	assert.Contains(t, sink.statusesFor("s1"), events.StatusOffline)
}

func TestDisconnectUnknownSessionIsSilent(t *testing.T) {
	reg := registry.New()
	sink := newRecordingSink()
	svc := presence.New(auth.InsecureProvider{}, reg, sink)

	_, err := svc.Connect("s1", "alice")
	require.NoError(t, err)
	before := len(sink.deliveries["s1"])

	// A connection that never completed the handshake leaves no trace
	_, ok := svc.Disconnect("never-connected")
	assert.False(t, ok)
	assert.Len(t, sink.deliveries["s1"], before)
}
