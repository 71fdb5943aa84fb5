package model

import "encoding/json"

// Snapshot is the whole durable state of the store: accounts, the game
// catalog, reviews and plugins. Rooms and sessions are never persisted.
type Snapshot struct {
	Developers map[string]*Account  `json:"developers"`
	Players    map[string]*Account  `json:"players"`
	Games      map[GameID]*Game     `json:"games"`
	Reviews    map[GameID][]Review  `json:"reviews"`
	Plugins    map[PluginID]*Plugin `json:"plugins"`
}

// NewSnapshot returns an empty snapshot with all maps allocated
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Developers: make(map[string]*Account),
		Players:    make(map[string]*Account),
		Games:      make(map[GameID]*Game),
		Reviews:    make(map[GameID][]Review),
		Plugins:    make(map[PluginID]*Plugin),
	}
}

// Accounts returns the account table for a client class, or nil for an unknown class
func (s *Snapshot) Accounts(class ClientClass) map[string]*Account {
	switch class {
	case ClassDeveloper:
		return s.Developers
	case ClassPlayer:
		return s.Players
	default:
		return nil
	}
}

// Normalize allocates any map left nil by a decoder
func (s *Snapshot) Normalize() {
	if s.Developers == nil {
		s.Developers = make(map[string]*Account)
	}
	if s.Players == nil {
		s.Players = make(map[string]*Account)
	}
	if s.Games == nil {
		s.Games = make(map[GameID]*Game)
	}
	if s.Reviews == nil {
		s.Reviews = make(map[GameID][]Review)
	}
	if s.Plugins == nil {
		s.Plugins = make(map[PluginID]*Plugin)
	}
}

// Clone returns a deep copy of the snapshot
func (s *Snapshot) Clone() (*Snapshot, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Snapshot
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return &out, nil
}
