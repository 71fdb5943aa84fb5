package model

import (
	"encoding/json"
	"time"
)

// RoomID identifies a room for its lifetime
type RoomID string

// RoomStatus is the state of a room. A destroyed room is simply absent.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting" // no match running
	RoomStatusPlaying RoomStatus = "playing" // a worker process is live
)

// ChatHistoryLimit bounds the number of chat entries a room keeps
const ChatHistoryLimit = 50

// ChatEntry is one room chat message
type ChatEntry struct {
	Username string    `json:"username"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sent_at"`
}

// MatchOutcome describes how a match ended
type MatchOutcome string

const (
	OutcomeReported   MatchOutcome = "reported"   // worker called back
	OutcomeAborted    MatchOutcome = "aborted"    // worker exited without reporting
	OutcomeTerminated MatchOutcome = "terminated" // forcibly ended
)

// MatchResult records the end of one match in a room
type MatchResult struct {
	Outcome    MatchOutcome    `json:"outcome"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	ReportedAt time.Time       `json:"reported_at"`
}

// Room binds a game, its members and a leased port
type Room struct {
	ID          RoomID        `json:"room_id"`
	GameID      GameID        `json:"game_id"`
	GameName    string        `json:"game_name"`
	GameVersion string        `json:"game_version"`
	Host        string        `json:"host"`
	Members     []string      `json:"players"` // join order
	MinPlayers  int           `json:"min_players"`
	MaxPlayers  int           `json:"max_players"`
	Status      RoomStatus    `json:"status"`
	Port        int           `json:"port"`
	Chat        []ChatEntry   `json:"-"`
	Results     []MatchResult `json:"-"`
	CreatedAt   time.Time     `json:"created_at"`
}

// IsMember reports whether username is in the room
func (r *Room) IsMember(username string) bool {
	return r.memberIndex(username) >= 0
}

// RemoveMember drops username from the member list, reporting whether it was present
func (r *Room) RemoveMember(username string) bool {
	i := r.memberIndex(username)
	if i < 0 {
		return false
	}
	r.Members = append(r.Members[:i], r.Members[i+1:]...)
	return true
}

// IsFull reports whether the room has reached its capacity
func (r *Room) IsFull() bool {
	return len(r.Members) >= r.MaxPlayers
}

// AppendChat adds an entry and trims the history to ChatHistoryLimit
func (r *Room) AppendChat(entry ChatEntry) {
	r.Chat = append(r.Chat, entry)
	if over := len(r.Chat) - ChatHistoryLimit; over > 0 {
		r.Chat = append([]ChatEntry(nil), r.Chat[over:]...)
	}
}

// LastResult returns the most recent match result, or nil
func (r *Room) LastResult() *MatchResult {
	if len(r.Results) == 0 {
		return nil
	}
	res := r.Results[len(r.Results)-1]
	return &res
}

// Clone returns a copy safe to hand outside the orchestrator lock
func (r *Room) Clone() *Room {
	out := *r
	out.Members = append([]string(nil), r.Members...)
	out.Chat = append([]ChatEntry(nil), r.Chat...)
	out.Results = append([]MatchResult(nil), r.Results...)
	return &out
}

func (r *Room) memberIndex(username string) int {
	for i, m := range r.Members {
		if m == username {
			return i
		}
	}
	return -1
}
