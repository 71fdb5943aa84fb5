// Package session binds authenticated accounts to live connections.
package session

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamestore-lobby/internal/dependencies/clock"
	"github.com/mcoot/gamestore-lobby/internal/dependencies/random"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
	"github.com/mcoot/gamestore-lobby/internal/storage"
)

// Credential length minimums, measured after trimming whitespace
const (
	MinUsernameLength = 3
	MinPasswordLength = 4
)

// Conn is the live connection a session is bound to
type Conn interface {
	Write(v any) error
	Close() error
}

// Session is the binding between a logged-in account and its connection
type Session struct {
	Token     string
	Class     model.ClientClass
	Username  string
	CreatedAt time.Time

	conn Conn
}

// EndFunc observes the end of a session, whatever the cause
type EndFunc func(class model.ClientClass, username string)

type accountKey struct {
	class    model.ClientClass
	username string
}

// Config holds configuration for the session manager
type Config struct {
	BcryptCost int
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Manager enforces a single live session per account.
//
// Lock order: the manager's lock is taken before any room or port lock.
// End observers run after the lock is released.
type Manager struct {
	repo   *storage.Repository
	clock  clock.Clock
	random random.Random
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	byToken   map[string]*Session
	byAccount map[accountKey]string
	observers []EndFunc
}

// New creates a session manager
func New(repo *storage.Repository, clock clock.Clock, random random.Random, cfg Config, logger *slog.Logger) *Manager {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = DefaultConfig().BcryptCost
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Manager{
		repo:      repo,
		clock:     clock,
		random:    random,
		cfg:       cfg,
		logger:    logger,
		byToken:   make(map[string]*Session),
		byAccount: make(map[accountKey]string),
	}
}

// OnSessionEnd registers an observer called after logout, disconnect or a
// superseding login.
func (m *Manager) OnSessionEnd(fn EndFunc) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Register creates an account. The display name defaults to the username.
func (m *Manager) Register(ctx context.Context, class model.ClientClass, username, password, displayName string) error {
	if !class.Valid() {
		return model.ErrInvalidClientClass
	}
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	displayName = strings.TrimSpace(displayName)
	if len(username) < MinUsernameLength || len(password) < MinPasswordLength {
		return model.ErrWeakCredential
	}
	if displayName == "" {
		displayName = username
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.cfg.BcryptCost)
	if err != nil {
		return err
	}

	err = m.repo.Update(ctx, func(s *model.Snapshot) error {
		accounts := s.Accounts(class)
		if _, exists := accounts[username]; exists {
			return model.ErrDuplicateAccount
		}
		account := &model.Account{
			Username:     username,
			PasswordHash: string(hash),
			DisplayName:  displayName,
			CreatedAt:    m.clock.Now(),
		}
		if class == model.ClassPlayer {
			account.PlayedGames = []model.GameID{}
		}
		accounts[username] = account
		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Info("account registered",
		slog.String("class", string(class)),
		slog.String("username", username),
	)
	return nil
}

// Login authenticates an account and binds a fresh session to conn. Any
// live session of the same account on another connection is told to log
// out and disconnected. Nothing changes when authentication fails.
func (m *Manager) Login(ctx context.Context, class model.ClientClass, username, password string, conn Conn) (*Session, *model.Account, error) {
	if !class.Valid() {
		return nil, nil, model.ErrInvalidClientClass
	}
	username = strings.TrimSpace(username)

	var account model.Account
	var found bool
	m.repo.View(func(s *model.Snapshot) {
		if a, ok := s.Accounts(class)[username]; ok {
			account = *a
			found = true
		}
	})
	if !found {
		return nil, nil, model.ErrAccountNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, nil, model.ErrBadCredential
	}

	key := accountKey{class: class, username: username}
	sess := &Session{
		Token:     m.random.Token(),
		Class:     class,
		Username:  username,
		CreatedAt: m.clock.Now(),
		conn:      conn,
	}

	m.mu.Lock()
	var superseded *Session
	if oldToken, ok := m.byAccount[key]; ok {
		superseded = m.byToken[oldToken]
		delete(m.byToken, oldToken)
	}
	err := m.repo.Update(ctx, func(s *model.Snapshot) error {
		a, ok := s.Accounts(class)[username]
		if !ok {
			return model.ErrAccountNotFound
		}
		a.SessionID = sess.Token
		return nil
	})
	if err != nil {
		// Put the previous session back untouched
		if superseded != nil {
			m.byToken[superseded.Token] = superseded
		}
		m.mu.Unlock()
		return nil, nil, err
	}
	m.byToken[sess.Token] = sess
	m.byAccount[key] = sess.Token
	observers := m.observers
	m.mu.Unlock()

	if superseded != nil {
		m.logger.Info("session superseded",
			slog.String("class", string(class)),
			slog.String("username", username),
		)
		// A re-login on the same connection keeps the socket open
		if superseded.conn != conn {
			m.forceLogout(superseded)
		}
		notify(observers, class, username)
	}

	account.SessionID = sess.Token
	m.logger.Info("login",
		slog.String("class", string(class)),
		slog.String("username", username),
	)
	return sess, &account, nil
}

// Logout ends the session identified by token
func (m *Manager) Logout(ctx context.Context, token string) error {
	sess, observers, err := m.end(ctx, token)
	if err != nil {
		return err
	}
	notify(observers, sess.Class, sess.Username)
	m.logger.Info("logout",
		slog.String("class", string(sess.Class)),
		slog.String("username", sess.Username),
	)
	return nil
}

// Release ends the session on disconnect. Unknown tokens are ignored.
func (m *Manager) Release(ctx context.Context, token string) {
	if token == "" {
		return
	}
	sess, observers, err := m.end(ctx, token)
	if err != nil {
		return
	}
	notify(observers, sess.Class, sess.Username)
	m.logger.Info("session released",
		slog.String("class", string(sess.Class)),
		slog.String("username", sess.Username),
	)
}

// Verify resolves a token to a username when the class matches
func (m *Manager) Verify(token string, class model.ClientClass) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byToken[token]
	if !ok || sess.Class != class {
		return "", false
	}
	return sess.Username, true
}

// Online returns the sorted usernames of a class with a live session
func (m *Manager) Online(class model.ClientClass) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for key := range m.byAccount {
		if key.class == class {
			names = append(names, key.username)
		}
	}
	sort.Strings(names)
	return names
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byToken)
}

// end removes a session binding and clears the persisted token. The
// in-memory binding is dropped even if persisting fails, so a dead
// connection never keeps an account logged in.
func (m *Manager) end(ctx context.Context, token string) (*Session, []EndFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.byToken[token]
	if !ok {
		return nil, nil, model.ErrSessionNotFound
	}
	delete(m.byToken, token)
	key := accountKey{class: sess.Class, username: sess.Username}
	if m.byAccount[key] == token {
		delete(m.byAccount, key)
	}

	err := m.repo.Update(ctx, func(s *model.Snapshot) error {
		if a, ok := s.Accounts(sess.Class)[sess.Username]; ok && a.SessionID == token {
			a.SessionID = ""
		}
		return nil
	})
	if err != nil {
		m.logger.Error("failed to clear persisted session",
			slog.String("username", sess.Username),
			slog.String("error", err.Error()),
		)
	}
	return sess, m.observers, nil
}

func (m *Manager) forceLogout(sess *Session) {
	if sess.conn == nil {
		return
	}
	push := protocol.Push{
		Type:    protocol.PushForceLogout,
		Message: "logged in from another connection",
	}
	if err := sess.conn.Write(push); err != nil {
		m.logger.Debug("force logout push failed",
			slog.String("username", sess.Username),
			slog.String("error", err.Error()),
		)
	}
	_ = sess.conn.Close()
}

func notify(observers []EndFunc, class model.ClientClass, username string) {
	for _, fn := range observers {
		fn(class, username)
	}
}
