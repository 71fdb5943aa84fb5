package factory

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/services/catalog"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

const manifest = `{
	"name": "Tic Tac Toe",
	"version": "1.0",
	"server_command": ["python3", "server.py"],
	"client_command": ["python3", "client.py"]
}`

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
	dir string
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.app = NewTestApp(filepath.Join(s.dir, "storage"))
	s.ctx = context.Background()
}

func (s *IntegrationSuite) TearDownTest() {
	s.Require().NoError(s.app.Close(s.ctx))
}

func (s *IntegrationSuite) bundle() string {
	path := filepath.Join(s.dir, "upload.zip")
	f, err := os.Create(path)
	s.Require().NoError(err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{"config.json": manifest, "server.py": "pass"} {
		w, err := zw.Create(name)
		s.Require().NoError(err)
		_, err = w.Write([]byte(content))
		s.Require().NoError(err)
	}
	s.Require().NoError(zw.Close())
	s.Require().NoError(f.Close())
	return path
}

func (s *IntegrationSuite) account(class model.ClientClass, name string) {
	s.Require().NoError(s.app.Sessions.Register(s.ctx, class, name, "secret", ""))
	_, _, err := s.app.Sessions.Login(s.ctx, class, name, "secret", nil)
	s.Require().NoError(err)
}

func (s *IntegrationSuite) publish() *model.Game {
	s.account(model.ClassDeveloper, "dev")
	up, err := s.app.Catalog.BeginUpload("dev", catalog.GameInfo{Name: "Tic Tac Toe", MinPlayers: 2, MaxPlayers: 2})
	s.Require().NoError(err)
	g, err := s.app.Catalog.Finish(s.ctx, up, s.bundle())
	s.Require().NoError(err)
	return g
}

// Test: publish, play a match, review, and survive a restart
func (s *IntegrationSuite) TestCompleteMatchFlow() {
	game := s.publish()
	s.account(model.ClassPlayer, "alice")
	s.account(model.ClassPlayer, "bob")

	// Step 1: host opens a room and a second player joins
	room, err := s.app.Rooms.Create(s.ctx, game.ID, "alice")
	s.Require().NoError(err)
	s.Equal(9000, room.Port)
	s.Equal(s.app.Settings.Ports.Last-s.app.Settings.Ports.First-1, s.app.Ports.Available())

	_, err = s.app.Rooms.Join(s.ctx, room.ID, "bob")
	s.Require().NoError(err)

	// Step 2: start the match
	started, err := s.app.Rooms.Start(s.ctx, room.ID, "alice")
	s.Require().NoError(err)
	s.Equal(model.RoomStatusPlaying, started.Room.Status)
	s.Equal([]string{"python3", "client.py"}, started.ClientCommand)
	s.Require().NoError(s.app.Catalog.MarkPlayed(s.ctx, started.Room.Members, game.ID))

	reqs := s.app.StubLauncher.Requests()
	s.Require().Len(reqs, 1)
	s.Equal(room.Port, reqs[0].Port)
	s.Equal(started.WorkerToken, reqs[0].WorkerToken)
	s.Equal("python3", reqs[0].Spec.Command[0])

	// Step 3: the worker reports and the room returns to waiting
	err = s.app.Rooms.ReportResult(s.ctx, room.ID, started.WorkerToken, json.RawMessage(`{"winner":"alice"}`))
	s.Require().NoError(err)

	after, err := s.app.Rooms.Get(room.ID)
	s.Require().NoError(err)
	s.Equal(model.RoomStatusWaiting, after.Status)
	s.Require().Len(after.Results, 1)
	s.Equal(model.OutcomeReported, after.Results[0].Outcome)

	// Step 4: players who played may review
	s.Require().NoError(s.app.Catalog.AddReview(s.ctx, "bob", game.ID, 4, "fun"))
	detail, err := s.app.Catalog.Detail(game.ID)
	s.Require().NoError(err)
	s.Len(detail.Reviews, 1)

	// Step 5: a new app over the same gateway sees the durable state
	restarted, err := newWithDependencies(s.ctx, s.app.MockGateway, s.app.MockClock, s.app.MockRandom,
		&StubLauncher{}, s.app.Settings, testutil.NopLogger())
	s.Require().NoError(err)

	profile, err := restarted.Catalog.Profile("bob")
	s.Require().NoError(err)
	s.Require().Len(profile.PlayedGames, 1)
	s.Equal(game.ID, profile.PlayedGames[0].ID)

	_, _, err = restarted.Sessions.Login(s.ctx, model.ClassPlayer, "alice", "secret", nil)
	s.NoError(err)
	s.Empty(restarted.Rooms.List(), "rooms are not persisted")
}

// Test: a player who logs out is removed from their room
func (s *IntegrationSuite) TestLogoutLeavesRoom() {
	game := s.publish()
	s.account(model.ClassPlayer, "alice")
	s.Require().NoError(s.app.Sessions.Register(s.ctx, model.ClassPlayer, "bob", "secret", ""))
	sess, _, err := s.app.Sessions.Login(s.ctx, model.ClassPlayer, "bob", "secret", nil)
	s.Require().NoError(err)

	room, err := s.app.Rooms.Create(s.ctx, game.ID, "alice")
	s.Require().NoError(err)
	_, err = s.app.Rooms.Join(s.ctx, room.ID, "bob")
	s.Require().NoError(err)

	s.Require().NoError(s.app.Sessions.Logout(s.ctx, sess.Token))

	after, err := s.app.Rooms.Get(room.ID)
	s.Require().NoError(err)
	s.Equal([]string{"alice"}, after.Members)
	_, inRoom := s.app.Rooms.RoomOf("bob")
	s.False(inRoom)
}

// Test: unpublishing is refused while a match of the game runs
func (s *IntegrationSuite) TestUnpublishBlockedByPlayingRoom() {
	game := s.publish()
	s.account(model.ClassPlayer, "alice")
	s.account(model.ClassPlayer, "bob")

	room, err := s.app.Rooms.Create(s.ctx, game.ID, "alice")
	s.Require().NoError(err)
	_, err = s.app.Rooms.Join(s.ctx, room.ID, "bob")
	s.Require().NoError(err)
	_, err = s.app.Rooms.Start(s.ctx, room.ID, "alice")
	s.Require().NoError(err)

	s.ErrorIs(s.app.Catalog.Unpublish(s.ctx, "dev", game.ID), model.ErrActiveRooms)

	s.Require().NoError(s.app.Rooms.AdminForceEnd(s.ctx, room.ID))
	s.NoError(s.app.Catalog.Unpublish(s.ctx, "dev", game.ID))
}

// Test: every storage type opens through the factory
func (s *IntegrationSuite) TestNewWithStorageTypes() {
	for _, storageType := range []string{"memory", "file", "sqlite"} {
		s.Run(storageType, func() {
			settings := s.app.Settings
			settings.Storage.Type = storageType
			settings.Storage.DataPath = filepath.Join(s.T().TempDir(), "lobby.db")

			app, err := New(s.ctx, Config{Settings: settings})
			s.Require().NoError(err)
			s.NotNil(app.Server)
			s.NotNil(app.Admin)
			s.NoError(app.Close(s.ctx))
		})
	}

	settings := s.app.Settings
	settings.Storage.Type = "postgres"
	_, err := New(s.ctx, Config{Settings: settings})
	s.ErrorContains(err, "invalid storage type")
}
