package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/testutil"
)

type GatewaySuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	gateway *Gateway
	ctx     context.Context
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.gateway = NewWithClient(client, DefaultConfig(), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *GatewaySuite) TearDownTest() {
	if s.gateway != nil {
		_ = s.gateway.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *GatewaySuite) TestLoadEmpty() {
	snap, err := s.gateway.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.Developers)
	s.NotNil(snap.Reviews)
}

func (s *GatewaySuite) TestSaveAndLoad() {
	snap := model.NewSnapshot()
	snap.Developers["dev"] = &model.Account{Username: "dev", PasswordHash: "hash", CreatedAt: time.Now().UTC()}
	snap.Games["g1"] = &model.Game{ID: "g1", Name: "Gomoku", Developer: "dev", Version: "1.0", Status: model.GameStatusActive}
	snap.Reviews["g1"] = []model.Review{{Username: "alice", Rating: 5, Comment: "great"}}
	snap.Plugins["chat"] = &model.Plugin{Name: "Room Chat", Version: "1.2", Filename: "chat_plugin.json"}

	s.Require().NoError(s.gateway.Save(s.ctx, snap))

	loaded, err := s.gateway.Load(s.ctx)
	s.Require().NoError(err)
	s.Equal("hash", loaded.Developers["dev"].PasswordHash)
	s.Equal("1.0", loaded.Games["g1"].Version)
	s.Require().Len(loaded.Reviews["g1"], 1)
	s.Equal("great", loaded.Reviews["g1"][0].Comment)
	s.Require().Contains(loaded.Plugins, model.PluginID("chat"))
	s.Equal("chat_plugin.json", loaded.Plugins["chat"].Filename)
}

func (s *GatewaySuite) TestSaveStoresOneFieldPerSection() {
	s.Require().NoError(s.gateway.Save(s.ctx, model.NewSnapshot()))

	for _, section := range sections {
		s.True(s.mini.Exists(snapshotKey("gamestore")))
		s.Equal("{}", s.mini.HGet(snapshotKey("gamestore"), section), section)
	}
}

func (s *GatewaySuite) TestSaveReplacesPreviousSnapshot() {
	first := model.NewSnapshot()
	first.Players["alice"] = &model.Account{Username: "alice"}
	s.Require().NoError(s.gateway.Save(s.ctx, first))

	second := model.NewSnapshot()
	second.Players["bob"] = &model.Account{Username: "bob"}
	s.Require().NoError(s.gateway.Save(s.ctx, second))

	loaded, err := s.gateway.Load(s.ctx)
	s.Require().NoError(err)
	s.NotContains(loaded.Players, "alice")
	s.Contains(loaded.Players, "bob")
}

func (s *GatewaySuite) TestLoadQuarantinesCorruptSnapshot() {
	s.mini.HSet(snapshotKey("gamestore"), sectionPlayers, "{broken")

	snap, err := s.gateway.Load(s.ctx)
	s.Require().NoError(err)
	s.Empty(snap.Players)

	s.False(s.mini.Exists(snapshotKey("gamestore")))
	s.True(s.mini.Exists(corruptedKey("gamestore")))
	s.Equal("{broken", s.mini.HGet(corruptedKey("gamestore"), sectionPlayers))
}
