package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/mocks"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
	"github.com/mcoot/gamestore-lobby/internal/storage"
	"github.com/mcoot/gamestore-lobby/internal/storage/memory"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

type fakeConn struct {
	mu     sync.Mutex
	writes []any
	closed bool
}

func (c *fakeConn) Write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

type ManagerSuite struct {
	suite.Suite
	gateway *memory.Gateway
	repo    *storage.Repository
	clock   *mocks.MockClock
	random  *mocks.MockRandom
	manager *Manager
	ctx     context.Context
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.gateway = memory.New()
	repo, err := storage.NewRepository(s.ctx, s.gateway)
	s.Require().NoError(err)
	s.repo = repo
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.manager = New(s.repo, s.clock, s.random, Config{BcryptCost: bcrypt.MinCost}, testutil.NopLogger())
}

func (s *ManagerSuite) account(class model.ClientClass, username string) *model.Account {
	var out *model.Account
	s.repo.View(func(snap *model.Snapshot) {
		if a, ok := snap.Accounts(class)[username]; ok {
			cp := *a
			out = &cp
		}
	})
	return out
}

func (s *ManagerSuite) persisted(class model.ClientClass, username string) *model.Account {
	snap, err := s.gateway.Load(s.ctx)
	s.Require().NoError(err)
	return snap.Accounts(class)[username]
}

// Register tests

func (s *ManagerSuite) TestRegisterCreatesAccount() {
	err := s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", "Alice")
	s.Require().NoError(err)

	a := s.persisted(model.ClassPlayer, "alice")
	s.Require().NotNil(a)
	s.Equal("Alice", a.DisplayName)
	s.NotEqual("secret", a.PasswordHash)
	s.Equal(s.clock.Now(), a.CreatedAt)
}

func (s *ManagerSuite) TestRegisterDefaultsDisplayName() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassDeveloper, "devone", "secret", ""))
	s.Equal("devone", s.account(model.ClassDeveloper, "devone").DisplayName)
}

func (s *ManagerSuite) TestRegisterWeakCredentials() {
	cases := []struct {
		name     string
		username string
		password string
	}{
		{"short username", "ab", "secret"},
		{"short password", "alice", "abc"},
		{"whitespace padded", "  ab  ", "    abc   "},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := s.manager.Register(s.ctx, model.ClassPlayer, tc.username, tc.password, "")
			s.ErrorIs(err, model.ErrWeakCredential)
		})
	}
}

func (s *ManagerSuite) TestRegisterDuplicateWithinClass() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))

	err := s.manager.Register(s.ctx, model.ClassPlayer, "alice", "other", "")
	s.ErrorIs(err, model.ErrDuplicateAccount)

	// Same name in the other class is fine
	s.NoError(s.manager.Register(s.ctx, model.ClassDeveloper, "alice", "secret", ""))
}

func (s *ManagerSuite) TestRegisterInvalidClass() {
	err := s.manager.Register(s.ctx, model.ClientClass("admin"), "alice", "secret", "")
	s.ErrorIs(err, model.ErrInvalidClientClass)
}

// Login tests

func (s *ManagerSuite) TestLoginSucceeds() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", "Alice"))
	s.random.QueueToken("tok-1")

	sess, account, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", &fakeConn{})
	s.Require().NoError(err)
	s.Equal("tok-1", sess.Token)
	s.Equal("Alice", account.DisplayName)
	s.Equal("tok-1", s.persisted(model.ClassPlayer, "alice").SessionID)

	username, ok := s.manager.Verify("tok-1", model.ClassPlayer)
	s.True(ok)
	s.Equal("alice", username)
}

func (s *ManagerSuite) TestLoginUnknownAccount() {
	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "nobody", "secret", &fakeConn{})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *ManagerSuite) TestLoginWrongPassword() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))

	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "wrong", &fakeConn{})
	s.ErrorIs(err, model.ErrBadCredential)
}

func (s *ManagerSuite) TestLoginWrongClass() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassDeveloper, "devone", "secret", ""))

	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "devone", "secret", &fakeConn{})
	s.ErrorIs(err, model.ErrAccountNotFound)
}

func (s *ManagerSuite) TestSecondLoginSupersedesFirst() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	s.random.QueueToken("tok-1", "tok-2")

	var ended []string
	s.manager.OnSessionEnd(func(class model.ClientClass, username string) {
		ended = append(ended, string(class)+":"+username)
	})

	first := &fakeConn{}
	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", first)
	s.Require().NoError(err)

	second := &fakeConn{}
	_, _, err = s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", second)
	s.Require().NoError(err)

	_, ok := s.manager.Verify("tok-1", model.ClassPlayer)
	s.False(ok, "first token must no longer resolve")
	_, ok = s.manager.Verify("tok-2", model.ClassPlayer)
	s.True(ok)

	s.True(first.closed)
	s.Require().Len(first.writes, 1)
	push, isPush := first.writes[0].(protocol.Push)
	s.Require().True(isPush)
	s.Equal(protocol.PushForceLogout, push.Type)
	s.False(second.closed)

	s.Equal([]string{"player:alice"}, ended)
	s.Equal(1, s.manager.Count())
	s.Equal("tok-2", s.persisted(model.ClassPlayer, "alice").SessionID)
}

func (s *ManagerSuite) TestReloginOnSameConnectionKeepsSocket() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	s.random.QueueToken("tok-1", "tok-2")

	conn := &fakeConn{}
	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", conn)
	s.Require().NoError(err)
	_, _, err = s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", conn)
	s.Require().NoError(err)

	s.False(conn.closed)
	s.Empty(conn.writes)
	_, ok := s.manager.Verify("tok-2", model.ClassPlayer)
	s.True(ok)
	s.Equal(1, s.manager.Count())
}

func (s *ManagerSuite) TestFailedLoginKeepsLiveSession() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	s.random.QueueToken("tok-1")

	var ended []string
	s.manager.OnSessionEnd(func(class model.ClientClass, username string) {
		ended = append(ended, username)
	})

	conn := &fakeConn{}
	_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", conn)
	s.Require().NoError(err)

	_, _, err = s.manager.Login(s.ctx, model.ClassPlayer, "alice", "wrong", &fakeConn{})
	s.ErrorIs(err, model.ErrBadCredential)

	_, ok := s.manager.Verify("tok-1", model.ClassPlayer)
	s.True(ok)
	s.False(conn.closed)
	s.Empty(ended)
	s.Equal("tok-1", s.persisted(model.ClassPlayer, "alice").SessionID)
}

// Verify tests

func (s *ManagerSuite) TestVerifyRequiresMatchingClass() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	sess, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", &fakeConn{})
	s.Require().NoError(err)

	_, ok := s.manager.Verify(sess.Token, model.ClassDeveloper)
	s.False(ok)
	_, ok = s.manager.Verify("unknown", model.ClassPlayer)
	s.False(ok)
}

// Logout and release tests

func (s *ManagerSuite) TestLogoutClearsSession() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	sess, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", &fakeConn{})
	s.Require().NoError(err)

	var ended int
	s.manager.OnSessionEnd(func(model.ClientClass, string) { ended++ })

	s.Require().NoError(s.manager.Logout(s.ctx, sess.Token))

	_, ok := s.manager.Verify(sess.Token, model.ClassPlayer)
	s.False(ok)
	s.Empty(s.persisted(model.ClassPlayer, "alice").SessionID)
	s.Equal(1, ended)

	s.ErrorIs(s.manager.Logout(s.ctx, sess.Token), model.ErrSessionNotFound)
}

func (s *ManagerSuite) TestReleaseIsIdempotent() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	sess, _, err := s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", &fakeConn{})
	s.Require().NoError(err)

	var ended int
	s.manager.OnSessionEnd(func(model.ClientClass, string) { ended++ })

	s.manager.Release(s.ctx, sess.Token)
	s.manager.Release(s.ctx, sess.Token)
	s.manager.Release(s.ctx, "")

	s.Equal(1, ended)
	s.Equal(0, s.manager.Count())
	s.Empty(s.persisted(model.ClassPlayer, "alice").SessionID)
}

func (s *ManagerSuite) TestOnlineListsByClass() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "bob", "secret", ""))
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassDeveloper, "devone", "secret", ""))

	for _, name := range []string{"bob", "alice"} {
		_, _, err := s.manager.Login(s.ctx, model.ClassPlayer, name, "secret", &fakeConn{})
		s.Require().NoError(err)
	}
	_, _, err := s.manager.Login(s.ctx, model.ClassDeveloper, "devone", "secret", &fakeConn{})
	s.Require().NoError(err)

	s.Equal([]string{"alice", "bob"}, s.manager.Online(model.ClassPlayer))
	s.Equal([]string{"devone"}, s.manager.Online(model.ClassDeveloper))
}

func (s *ManagerSuite) TestConcurrentLoginsLeaveOneSession() {
	s.Require().NoError(s.manager.Register(s.ctx, model.ClassPlayer, "alice", "secret", ""))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.manager.Login(s.ctx, model.ClassPlayer, "alice", "secret", &fakeConn{})
		}()
	}
	wg.Wait()

	s.Equal(1, s.manager.Count())
	s.Equal([]string{"alice"}, s.manager.Online(model.ClassPlayer))
}
