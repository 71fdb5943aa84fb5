package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamestore-lobby/internal/api"
	"github.com/mcoot/gamestore-lobby/internal/api/apierr"
	"github.com/mcoot/gamestore-lobby/internal/api/response"
	"github.com/mcoot/gamestore-lobby/internal/factory"
	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

const adminToken = "s3cret"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp(filepath.Join(t.TempDir(), "storage"))
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	router := api.NewRouter(api.RouterConfig{
		Logger:      testutil.NopLogger(),
		AdminToken:  adminToken,
		Sessions:    app.Sessions,
		Catalog:     app.Catalog,
		Rooms:       app.Rooms,
		Ports:       app.Ports,
		Connections: app.Server,
		Events:      app.Events,
	})

	return &testServer{handler: router, app: app}
}

func (ts *testServer) request(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// seedRoom creates a waiting room with two players
func (ts *testServer) seedRoom(t *testing.T) *model.Room {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, ts.app.Repository.Update(ctx, func(s *model.Snapshot) error {
		s.Games["game0001"] = &model.Game{
			ID:         "game0001",
			Name:       "Gomoku",
			Developer:  "dev",
			Version:    "1.0",
			MinPlayers: 2,
			MaxPlayers: 4,
			Status:     model.GameStatusActive,
		}
		return nil
	}))
	for _, name := range []string{"alice", "bob"} {
		require.NoError(t, ts.app.Sessions.Register(ctx, model.ClassPlayer, name, "secret", ""))
		_, _, err := ts.app.Sessions.Login(ctx, model.ClassPlayer, name, "secret", nil)
		require.NoError(t, err)
	}

	room, err := ts.app.Rooms.Create(ctx, "game0001", "alice")
	require.NoError(t, err)
	_, err = ts.app.Rooms.Join(ctx, room.ID, "bob")
	require.NoError(t, err)
	return room
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var body apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var body response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 0, body.Connections)
}

func TestAdminTokenRequired(t *testing.T) {
	ts := newTestServer(t)

	for _, token := range []string{"", "wrong"} {
		rr := ts.request(http.MethodGet, "/api/v1/lobby", token)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, rr).Code)
	}
}

func TestLobbyOverview(t *testing.T) {
	ts := newTestServer(t)
	ts.seedRoom(t)

	rr := ts.request(http.MethodGet, "/api/v1/lobby", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var body response.Lobby
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.ElementsMatch(t, []string{"alice", "bob"}, body.OnlinePlayers)
	assert.Empty(t, body.OnlineDevelopers)
	assert.Equal(t, 2, body.Sessions)
	assert.Equal(t, 1, body.RoomCount)
	assert.Equal(t, 0, body.PlayingCount)
	assert.Equal(t, 1, body.ActiveGames)
}

func TestListAndGetRooms(t *testing.T) {
	ts := newTestServer(t)
	room := ts.seedRoom(t)

	rr := ts.request(http.MethodGet, "/api/v1/rooms", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var rooms []response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, string(room.ID), rooms[0].ID)
	assert.Equal(t, []string{"alice", "bob"}, rooms[0].Players)
	assert.Equal(t, "waiting", rooms[0].Status)

	rr = ts.request(http.MethodGet, "/api/v1/rooms/"+string(room.ID), adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var got response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "alice", got.Host)
	assert.Equal(t, 9000, got.Port)
	assert.Empty(t, got.Results)
}

func TestGetUnknownRoom(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rooms/nope", adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeRoomNotFound, decodeError(t, rr).Code)
}

func TestWorkerOutputRequiresPlayingRoom(t *testing.T) {
	ts := newTestServer(t)
	room := ts.seedRoom(t)

	rr := ts.request(http.MethodGet, "/api/v1/rooms/"+string(room.ID)+"/output", adminToken)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNotPlaying, decodeError(t, rr).Code)
}

func TestEndRoom(t *testing.T) {
	ts := newTestServer(t)
	room := ts.seedRoom(t)

	rr := ts.request(http.MethodDelete, "/api/v1/rooms/"+string(room.ID), adminToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	_, err := ts.app.Rooms.Get(room.ID)
	assert.ErrorIs(t, err, model.ErrRoomNotFound)
	assert.Equal(t, 100, ts.app.Ports.Available())

	rr = ts.request(http.MethodDelete, "/api/v1/rooms/"+string(room.ID), adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPorts(t *testing.T) {
	ts := newTestServer(t)
	ts.seedRoom(t)

	rr := ts.request(http.MethodGet, "/api/v1/ports", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var body response.Ports
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, response.Ports{First: 9000, Last: 9100, Available: 99, Leased: 1}, body)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/nothing-here", adminToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, decodeError(t, rr).Code)
}

func TestEmptyAdminTokenDisablesAuth(t *testing.T) {
	app := factory.NewTestApp(filepath.Join(t.TempDir(), "storage"))
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	rr := httptest.NewRecorder()
	app.Admin.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestEventsStreamsMatchResults(t *testing.T) {
	ts := newTestServer(t)
	room := ts.seedRoom(t)

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reader := bufio.NewReader(resp.Body)
	next := func() (name, data string) {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSuffix(line, "\n")
			switch {
			case line == "":
				return name, data
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data += strings.TrimPrefix(line, "data: ")
			}
		}
	}

	name, _ := next()
	require.Equal(t, "connected", name)

	// Give the seeded game a bundle so the match can launch
	ctx := context.Background()
	storagePath := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(storagePath, "game"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(storagePath, "game", "config.json"),
		[]byte(`{"name":"Gomoku","version":"1.0","server_command":["./server"],"client_command":["./client"]}`), 0o644))
	require.NoError(t, ts.app.Repository.Update(ctx, func(s *model.Snapshot) error {
		s.Games["game0001"].StoragePath = storagePath
		return nil
	}))

	_, err = ts.app.Rooms.Start(ctx, room.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, ts.app.Rooms.AdminForceEnd(ctx, room.ID))

	name, data := next()
	assert.Equal(t, "match-finished", name)
	var event struct {
		RoomID  string   `json:"room_id"`
		Outcome string   `json:"outcome"`
		Players []string `json:"players"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &event))
	assert.Equal(t, string(room.ID), event.RoomID)
	assert.Equal(t, string(model.OutcomeTerminated), event.Outcome)
	assert.ElementsMatch(t, []string{"alice", "bob"}, event.Players)
}

func TestPublishAndListPlugins(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut,
		"/api/v1/plugins/chat?name=Room+Chat&version=1.0&filename=chat_plugin.json&description=chat",
		strings.NewReader(`{"enabled":true}`))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var published response.Plugin
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &published))
	assert.Equal(t, "chat", published.ID)
	assert.Equal(t, "Room Chat", published.Name)

	_, path, err := ts.app.Catalog.PluginFile("chat")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":true}`, string(data))

	rr = ts.request(http.MethodGet, "/api/v1/plugins", adminToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []response.Plugin
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "1.0", list[0].Version)
}

func TestPublishPluginRejectsBadMetadata(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/plugins/chat?name=Chat&version=1&filename=../x", strings.NewReader("x"))
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidRequest, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPut, "/api/v1/plugins/chat", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
