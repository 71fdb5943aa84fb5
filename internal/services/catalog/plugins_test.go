package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

func (s *ServiceSuite) TestPublishPluginStoresFile() {
	p, err := s.service.PublishPlugin(s.ctx, "chat", model.Plugin{
		Name:        "Room Chat",
		Version:     "1.0",
		Description: "chat inside matches",
		Filename:    "chat_plugin.json",
	}, strings.NewReader(`{"enabled":true}`))
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), p.UpdatedAt)

	plugins := s.service.Plugins()
	s.Require().Contains(plugins, model.PluginID("chat"))
	s.Equal("Room Chat", plugins["chat"].Name)

	got, path, err := s.service.PluginFile("chat")
	s.Require().NoError(err)
	s.Equal("1.0", got.Version)
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.JSONEq(`{"enabled":true}`, string(data))
}

func (s *ServiceSuite) TestPublishPluginReplacesRelease() {
	_, err := s.service.PublishPlugin(s.ctx, "chat", model.Plugin{Name: "Chat", Version: "1.0", Filename: "chat-1.json"}, strings.NewReader("v1"))
	s.Require().NoError(err)
	s.clock.Advance(time.Hour)

	_, err = s.service.PublishPlugin(s.ctx, "chat", model.Plugin{Name: "Chat", Version: "1.1", Filename: "chat-2.json"}, strings.NewReader("v2"))
	s.Require().NoError(err)

	s.Len(s.service.Plugins(), 1)
	s.NoFileExists(filepath.Join(s.dir, "storage", "plugins", "chat-1.json"))
	_, path, err := s.service.PluginFile("chat")
	s.Require().NoError(err)
	s.Equal("chat-2.json", filepath.Base(path))
}

func (s *ServiceSuite) TestPublishPluginValidation() {
	tests := []struct {
		name   string
		id     model.PluginID
		plugin model.Plugin
	}{
		{"missing id", " ", model.Plugin{Name: "Chat", Version: "1", Filename: "chat.json"}},
		{"missing name", "chat", model.Plugin{Version: "1", Filename: "chat.json"}},
		{"missing version", "chat", model.Plugin{Name: "Chat", Filename: "chat.json"}},
		{"path in filename", "chat", model.Plugin{Name: "Chat", Version: "1", Filename: "../chat.json"}},
		{"hidden filename", "chat", model.Plugin{Name: "Chat", Version: "1", Filename: ".chat"}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.service.PublishPlugin(s.ctx, tt.id, tt.plugin, strings.NewReader("x"))
			s.ErrorIs(err, model.ErrInvalidPlugin)
		})
	}
	s.Empty(s.service.Plugins())
}

func (s *ServiceSuite) TestPluginFileErrors() {
	_, _, err := s.service.PluginFile("missing")
	s.ErrorIs(err, model.ErrPluginNotFound)

	_, err = s.service.PublishPlugin(s.ctx, "chat", model.Plugin{Name: "Chat", Version: "1", Filename: "chat.json"}, strings.NewReader("x"))
	s.Require().NoError(err)
	s.Require().NoError(os.Remove(filepath.Join(s.dir, "storage", "plugins", "chat.json")))

	_, _, err = s.service.PluginFile("chat")
	s.ErrorIs(err, model.ErrPluginMissing)
}
