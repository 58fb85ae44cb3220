package directory_test

import (
	"testing"
	"time"

	"chatcore/apperrors"
	"chatcore/services/directory"

	"github.com/stretchr/testify/suite"
)

// stubRecency serves canned last-activity timestamps
type stubRecency struct {
	activity map[string]time.Time
}

func (s *stubRecency) LastActivity(chatID string) (time.Time, bool) {
	at, ok := s.activity[chatID]
	return at, ok
}

type DirectoryTestSuite struct {
	suite.Suite
	dir *directory.Directory
}

func TestDirectorySuite(t *testing.T) {
	suite.Run(t, new(DirectoryTestSuite))
}

func (s *DirectoryTestSuite) SetupTest() {
	s.dir = directory.New()
}

func (s *DirectoryTestSuite) TestCreateOneOnOne() {
	chat, created, err := s.dir.CreateOneOnOne("alice", "bob")
	s.NoError(err)
	s.True(created)
	s.Equal(directory.ChatTypeOneOnOne, chat.Type)
	s.Len(chat.Members, 2)

	s.True(s.dir.Exists(chat.ID))
	s.True(s.dir.IsMember(chat.ID, "alice"))
	s.True(s.dir.IsMember(chat.ID, "bob"))
	s.False(s.dir.IsMember(chat.ID, "carol"))
}

func (s *DirectoryTestSuite) TestOneOnOneDeduplication() {
	first, created, err := s.dir.CreateOneOnOne("alice", "bob")
	s.NoError(err)
	s.True(created)

	// Same pair again, either argument order, yields the same chat
	second, created, err := s.dir.CreateOneOnOne("alice", "bob")
	s.NoError(err)
	s.False(created)
	s.Equal(first.ID, second.ID)

	reversed, created, err := s.dir.CreateOneOnOne("bob", "alice")
	s.NoError(err)
	s.False(created)
	s.Equal(first.ID, reversed.ID)
}

func (s *DirectoryTestSuite) TestOneOnOneRejectsBadPairs() {
	_, _, err := s.dir.CreateOneOnOne("alice", "alice")
	s.Error(err)
	s.Equal(apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))

	_, _, err = s.dir.CreateOneOnOne("alice", "")
	s.Error(err)
	s.Equal(apperrors.ErrCodeInvalidArgument, apperrors.CodeOf(err))
}

func (s *DirectoryTestSuite) TestCreateGroup() {
	chat, err := s.dir.CreateGroup("alice", []string{"bob", "carol", "bob", ""}, "team")
	s.NoError(err)
	s.Equal(directory.ChatTypeGroup, chat.Type)
	s.Equal("team", chat.Name)

	// Creator first, duplicates and blanks dropped
	s.Len(chat.Members, 3)
	s.Equal("alice", chat.Members[0].UserID)

	ids, err := s.dir.MemberUserIDs(chat.ID)
	s.NoError(err)
	s.Equal([]string{"alice", "bob", "carol"}, ids)
}

func (s *DirectoryTestSuite) TestGroupsNeverDeduplicate() {
	first, err := s.dir.CreateGroup("alice", []string{"bob"}, "")
	s.NoError(err)
	second, err := s.dir.CreateGroup("alice", []string{"bob"}, "")
	s.NoError(err)
	s.NotEqual(first.ID, second.ID)
}

func (s *DirectoryTestSuite) TestChatNotFound() {
	_, err := s.dir.Chat("missing")
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	_, err = s.dir.Members("missing")
	s.Equal(apperrors.ErrCodeNotFound, apperrors.CodeOf(err))

	s.False(s.dir.Exists("missing"))
	s.False(s.dir.IsMember("missing", "alice"))
}

func (s *DirectoryTestSuite) TestChatsForUserRecencyOrder() {
	quiet, _, err := s.dir.CreateOneOnOne("alice", "bob")
	s.NoError(err)
	old, _, err := s.dir.CreateOneOnOne("alice", "carol")
	s.NoError(err)
	busy, err := s.dir.CreateGroup("alice", []string{"bob", "carol"}, "busy")
	s.NoError(err)

	now := time.Now()
	s.dir.SetRecency(&stubRecency{activity: map[string]time.Time{
		busy.ID: now,
		old.ID:  now.Add(-time.Hour),
		// quiet has no messages at all
	}})

	chats := s.dir.ChatsForUser("alice")
	s.Len(chats, 3)
	s.Equal(busy.ID, chats[0].ID)
	s.Equal(old.ID, chats[1].ID)
	s.Equal(quiet.ID, chats[2].ID)
}

func (s *DirectoryTestSuite) TestSetLastRead() {
	chat, _, err := s.dir.CreateOneOnOne("alice", "bob")
	s.NoError(err)

	at := time.Now()
	s.dir.SetLastRead(chat.ID, "bob", "m1", at)

	members, err := s.dir.Members(chat.ID)
	s.NoError(err)
	for _, m := range members {
		if m.UserID == "bob" {
			s.Equal("m1", m.LastReadMessageID)
			s.WithinDuration(at, m.LastReadAt, time.Second)
		} else {
			s.Empty(m.LastReadMessageID)
		}
	}
}

func (s *DirectoryTestSuite) TestLoadRestoresPairIndex() {
	created := time.Now().Add(-time.Hour)
	s.dir.Load([]directory.Chat{
		{
			ID:        "c1",
			Type:      directory.ChatTypeOneOnOne,
			CreatedAt: created,
			Members: []directory.Member{
				{UserID: "alice", JoinedAt: created},
				{UserID: "bob", JoinedAt: created},
			},
		},
	})

	// A new direct chat request for the restored pair must find c1
	chat, createdNow, err := s.dir.CreateOneOnOne("bob", "alice")
	s.NoError(err)
	s.False(createdNow)
	s.Equal("c1", chat.ID)
}
