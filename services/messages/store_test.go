package messages_test

import (
	"testing"
	"time"

	"chatcore/apperrors"
	"chatcore/services/directory"
	"chatcore/services/messages"

	"github.com/stretchr/testify/suite"
)

type StoreTestSuite struct {
	suite.Suite
	dir   *directory.Directory
	store *messages.Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) SetupTest() {
	s.dir = directory.New()
	s.store = messages.New(s.dir)
}

func (s *StoreTestSuite) direct(a, b string) string {
	chat, _, err := s.dir.CreateOneOnOne(a, b)
	s.Require().NoError(err)
	return chat.ID
}

func (s *StoreTestSuite) group(creator string, members ...string) string {
	chat, err := s.dir.CreateGroup(creator, members, "")
	s.Require().NoError(err)
	return chat.ID
}

func (s *StoreTestSuite) TestAddPreservesOrder() {
	chatID := s.direct("alice", "bob")

	texts := []string{"first", "second", "third"}
	for _, text := range texts {
		_, err := s.store.Add(chatID, "alice", text)
		s.NoError(err)
	}

	list, err := s.store.List(chatID)
	s.NoError(err)
	s.Len(list, 3)
	for i, msg := range list {
		s.Equal(texts[i], msg.Text)
		s.Equal("alice", msg.SenderID)
		s.Empty(msg.SeenBy)
	}
}

func (s *StoreTestSuite) TestAddValidation() {
	chatID := s.direct("alice", "bob")

	_, err := s.store.Add("", "alice", "hi")
	s.Equal(apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))

	_, err = s.store.Add(chatID, "alice", "")
	s.Equal(apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))

	_, err = s.store.Add("missing", "alice", "hi")
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	_, err = s.store.Add(chatID, "mallory", "hi")
	s.Equal(apperrors.ErrCodeNotMember, apperrors.CodeOf(err))

	// Failed appends leave the log untouched
	list, err := s.store.List(chatID)
	s.NoError(err)
	s.Empty(list)
}

func (s *StoreTestSuite) TestMarkSeen() {
	chatID := s.direct("alice", "bob")
	msg, err := s.store.Add(chatID, "alice", "hi")
	s.Require().NoError(err)

	changed, err := s.store.MarkSeen(chatID, "bob", msg.ID)
	s.NoError(err)
	s.True(changed)

	// Second acknowledgment is a silent no-op
	changed, err = s.store.MarkSeen(chatID, "bob", msg.ID)
	s.NoError(err)
	s.False(changed)

	list, err := s.store.List(chatID)
	s.NoError(err)
	s.Equal([]string{"bob"}, list[0].SeenBy)
}

func (s *StoreTestSuite) TestSenderNeverInSeenBy() {
	chatID := s.direct("alice", "bob")
	msg, err := s.store.Add(chatID, "alice", "hi")
	s.Require().NoError(err)

	changed, err := s.store.MarkSeen(chatID, "alice", msg.ID)
	s.NoError(err)
	s.False(changed)

	list, err := s.store.List(chatID)
	s.NoError(err)
	s.Empty(list[0].SeenBy)
}

func (s *StoreTestSuite) TestMarkSeenErrors() {
	chatID := s.direct("alice", "bob")
	otherID := s.direct("alice", "carol")
	msg, err := s.store.Add(chatID, "alice", "hi")
	s.Require().NoError(err)

	_, err = s.store.MarkSeen("missing", "bob", msg.ID)
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	_, err = s.store.MarkSeen(chatID, "bob", "missing")
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	// A message id from another chat does not resolve
	_, err = s.store.MarkSeen(otherID, "carol", msg.ID)
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))
}

func (s *StoreTestSuite) TestMarkAllSeen() {
	chatID := s.group("alice", "bob", "carol")

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		msg, err := s.store.Add(chatID, "alice", text)
		s.Require().NoError(err)
		ids = append(ids, msg.ID)
	}

	// Bob reads message two explicitly, then opens the chat
	_, err := s.store.MarkSeen(chatID, "bob", ids[1])
	s.Require().NoError(err)

	changed, err := s.store.MarkAllSeen(chatID, "bob")
	s.NoError(err)
	s.Len(changed, 2)
	s.Equal(ids[0], changed[0].ID)
	s.Equal(ids[2], changed[1].ID)

	// Everything read already: nothing changes
	changed, err = s.store.MarkAllSeen(chatID, "bob")
	s.NoError(err)
	s.Empty(changed)
}

func (s *StoreTestSuite) TestUnreadCount() {
	chatID := s.group("alice", "bob", "carol")

	for _, text := range []string{"one", "two"} {
		_, err := s.store.Add(chatID, "alice", text)
		s.Require().NoError(err)
	}
	reply, err := s.store.Add(chatID, "bob", "reply")
	s.Require().NoError(err)

	// Own messages never count as unread
	count, err := s.store.UnreadCount(chatID, "alice")
	s.NoError(err)
	s.Equal(1, count)

	count, err = s.store.UnreadCount(chatID, "bob")
	s.NoError(err)
	s.Equal(2, count)

	count, err = s.store.UnreadCount(chatID, "carol")
	s.NoError(err)
	s.Equal(3, count)

	_, err = s.store.MarkSeen(chatID, "alice", reply.ID)
	s.Require().NoError(err)
	count, err = s.store.UnreadCount(chatID, "alice")
	s.NoError(err)
	s.Equal(0, count)
}

func (s *StoreTestSuite) TestLastActivity() {
	chatID := s.direct("alice", "bob")

	_, ok := s.store.LastActivity(chatID)
	s.False(ok)

	first, err := s.store.Add(chatID, "alice", "hi")
	s.Require().NoError(err)
	second, err := s.store.Add(chatID, "bob", "hello")
	s.Require().NoError(err)

	at, ok := s.store.LastActivity(chatID)
	s.True(ok)
	s.Equal(second.SentAt, at)
	s.False(at.Before(first.SentAt))
}

func (s *StoreTestSuite) TestLoad() {
	chatID := s.direct("alice", "bob")
	sent := time.Now().Add(-time.Hour)

	s.store.Load([]messages.Message{
		{ID: "m1", ChatID: chatID, SenderID: "alice", Text: "hi", SentAt: sent, SeenBy: []string{"bob", "alice"}},
		{ID: "m2", ChatID: chatID, SenderID: "bob", Text: "hello", SentAt: sent.Add(time.Minute)},
	})

	list, err := s.store.List(chatID)
	s.NoError(err)
	s.Require().Len(list, 2)

	// The sender is stripped from any persisted seen set
	s.Equal([]string{"bob"}, list[0].SeenBy)
	s.Empty(list[1].SeenBy)

	count, err := s.store.UnreadCount(chatID, "alice")
	s.NoError(err)
	s.Equal(1, count)
	count, err = s.store.UnreadCount(chatID, "bob")
	s.NoError(err)
	s.Equal(0, count)

	// Re-loading the same ids is a no-op
	s.store.Load([]messages.Message{{ID: "m1", ChatID: chatID, SenderID: "alice", Text: "dup", SentAt: sent}})
	list, err = s.store.List(chatID)
	s.NoError(err)
	s.Len(list, 2)
}
