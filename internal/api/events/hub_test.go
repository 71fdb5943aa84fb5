package events

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		data     string
		expected string
	}{
		{"single line", "match-finished", `{"a":1}`, "event: match-finished\ndata: {\"a\":1}\n\n"},
		{"multi line", "note", "one\ntwo", "event: note\ndata: one\ndata: two\n\n"},
		{"carriage returns", "note", "one\r\ntwo", "event: note\ndata: one\ndata: two\n\n"},
		{"trailing newline", "note", "one\n", "event: note\ndata: one\n\n"},
		{"empty", "ping", "", "event: ping\ndata: \n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(formatMessage(tt.event, tt.data)))
		})
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testutil.NopLogger())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func TestHubBroadcast(t *testing.T) {
	hub := startHub(t)

	a, b := NewClient(), NewClient()
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Publish(EventMatchFinished, map[string]string{"room_id": "r1"})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.send:
			assert.Equal(t, "event: match-finished\ndata: {\"room_id\":\"r1\"}\n\n", string(msg))
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	hub.Unregister(a)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	_, open := <-a.send
	assert.False(t, open)
}

func TestHubCloseEndsClients(t *testing.T) {
	hub := NewHub(testutil.NopLogger())
	go hub.Run()

	c := NewClient()
	require.True(t, hub.Register(c))
	hub.Close()

	select {
	case _, open := <-c.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("client not closed")
	}

	assert.False(t, hub.Register(NewClient()))
	hub.Unregister(c)
	hub.Publish(EventMatchFinished, struct{}{})
	hub.Close()
}

func TestSlowClientDropsEvents(t *testing.T) {
	hub := startHub(t)

	c := NewClient()
	require.True(t, hub.Register(c))
	for i := 0; i < sendBufferSize+10; i++ {
		hub.Publish("tick", i)
	}

	assert.Eventually(t, func() bool { return len(c.send) == sendBufferSize }, time.Second, 5*time.Millisecond)
}

func TestServeStreamsEvents(t *testing.T) {
	hub := startHub(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Serve(w, r, hub)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() (string, string) {
		var name, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
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

	name, _ := readEvent()
	require.Equal(t, EventConnected, name)

	room := &model.Room{ID: "r1", GameID: "g1", GameName: "Gomoku", Members: []string{"alice", "bob"}}
	result := model.MatchResult{Outcome: model.OutcomeReported, Detail: json.RawMessage(`{"winner":"alice"}`)}
	hub.Publish(EventMatchFinished, MatchFinishedFrom(room, result))

	name, data := readEvent()
	assert.Equal(t, EventMatchFinished, name)
	var got MatchFinished
	require.NoError(t, json.Unmarshal([]byte(data), &got))
	assert.Equal(t, model.RoomID("r1"), got.RoomID)
	assert.Equal(t, []string{"alice", "bob"}, got.Players)
	assert.Equal(t, model.OutcomeReported, got.Outcome)
	assert.JSONEq(t, `{"winner":"alice"}`, string(got.Detail))
}
