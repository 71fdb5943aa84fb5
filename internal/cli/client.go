package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

// ErrForcedLogout is returned when the server ends the session because the
// account logged in elsewhere
var ErrForcedLogout = errors.New("logged out: account logged in from another connection")

// ServerError is a failed response from the lobby
type ServerError struct {
	Action  protocol.Action
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Client is a single lobby connection speaking the framed protocol
type Client struct {
	conn    net.Conn
	codec   *protocol.Codec
	class   model.ClientClass
	session string
	timeout time.Duration
}

// Dial connects to the lobby at addr. class is sent with every request and
// may be empty for worker callbacks.
func Dial(addr string, class model.ClientClass, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return &Client{
		conn:    conn,
		codec:   protocol.NewCodec(conn, 0),
		class:   class,
		timeout: timeout,
	}, nil
}

// Close closes the connection. The server ends the session with it.
func (c *Client) Close() error {
	return c.codec.Close()
}

// Call sends one request and decodes the reply data into result, which may
// be nil. A failed response is returned as a *ServerError.
func (c *Client) Call(action protocol.Action, fields map[string]any, result any) (string, error) {
	if err := c.send(action, fields); err != nil {
		return "", err
	}
	return c.receive(action, result)
}

// Register creates an account of the client's class
func (c *Client) Register(username, password, displayName string) error {
	fields := map[string]any{"username": username, "password": password}
	if displayName != "" {
		fields["display_name"] = displayName
	}
	_, err := c.Call(protocol.ActionRegister, fields, nil)
	return err
}

// Login authenticates and remembers the session for later requests
func (c *Client) Login(username, password string) (LoginResult, error) {
	var result LoginResult
	_, err := c.Call(protocol.ActionLogin, map[string]any{"username": username, "password": password}, &result)
	if err != nil {
		return result, err
	}
	c.session = result.SessionID
	return result, nil
}

// Publish runs an upload or update: the request, the bundle transfer, then
// the final response decoded into result
func (c *Client) Publish(action protocol.Action, fields map[string]any, bundle string, result any) error {
	if _, err := c.Call(action, fields, nil); err != nil {
		return err
	}

	// Transfers may take longer than a single request
	_ = c.conn.SetDeadline(time.Time{})
	if err := protocol.SendFile(c.codec, bundle); err != nil {
		return fmt.Errorf("send bundle: %w", err)
	}
	_, err := c.receive(action, result)
	return err
}

// Download fetches a game's bundle archive into dir and returns its path
func (c *Client) Download(gameID string, dir string) (DownloadResult, error) {
	var result DownloadResult
	path, err := c.fetch(protocol.ActionDownloadGame, map[string]any{"game_id": gameID}, &result, dir)
	result.Path = path
	return result, err
}

// DownloadPlugin fetches a plugin file into dir
func (c *Client) DownloadPlugin(pluginID string, dir string) (PluginDownloadResult, error) {
	var result PluginDownloadResult
	path, err := c.fetch(protocol.ActionDownloadPlugin, map[string]any{"plugin_id": pluginID}, &result, dir)
	result.Path = path
	return result, err
}

// fetch asks for a file, acknowledges the announcement with READY and
// receives the transfer into dir
func (c *Client) fetch(action protocol.Action, fields map[string]any, announce any, dir string) (string, error) {
	if _, err := c.Call(action, fields, announce); err != nil {
		return "", err
	}

	_ = c.conn.SetDeadline(time.Time{})
	if err := c.codec.Write(protocol.TransferStatus{Status: protocol.StatusReady}); err != nil {
		return "", err
	}
	path, err := protocol.ReceiveNext(c.codec, dir, 0)
	if err != nil {
		return "", fmt.Errorf("receive file: %w", err)
	}
	return path, nil
}

func (c *Client) send(action protocol.Action, fields map[string]any) error {
	if c.timeout > 0 {
		_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	}
	if err := c.codec.Write(protocol.NewRequest(action, c.class, c.session, fields)); err != nil {
		return fmt.Errorf("send %s: %w", action, err)
	}
	return nil
}

func (c *Client) receive(action protocol.Action, result any) (string, error) {
	var reply protocol.Reply
	if err := c.codec.Read(&reply); err != nil {
		return "", fmt.Errorf("read %s reply: %w", action, err)
	}
	if reply.IsPush() {
		if reply.Type == protocol.PushForceLogout {
			return "", ErrForcedLogout
		}
		return "", fmt.Errorf("unexpected %s message", reply.Type)
	}
	if !reply.Success {
		return reply.Message, &ServerError{Action: action, Message: reply.Message}
	}
	if result != nil {
		if err := reply.DecodeData(result); err != nil {
			return reply.Message, fmt.Errorf("decode %s reply: %w", action, err)
		}
	}
	return reply.Message, nil
}

// rawJSON wraps a user-supplied JSON document so it is sent unchanged
func rawJSON(s string) (json.RawMessage, error) {
	if s == "" {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid([]byte(s)) {
		return nil, fmt.Errorf("invalid JSON: %s", s)
	}
	return json.RawMessage(s), nil
}
