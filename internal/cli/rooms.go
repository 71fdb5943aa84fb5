package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

// errRoomClosed is returned when a room is no longer listed
var errRoomClosed = errors.New("room is closed")

func newRoomsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List, host and join rooms",
		Long: `List, host and join rooms.

A room lives as long as its host's connection, so create and join stay
connected until the match finishes or the command is interrupted.`,
	}

	cmd.AddCommand(newRoomsListCmd(cfg))
	cmd.AddCommand(newRoomsCreateCmd(cfg))
	cmd.AddCommand(newRoomsJoinCmd(cfg))

	return cmd
}

func newRoomsListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List open rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, false, func(c *Client) error {
				var result RoomsResult
				if _, err := c.Call(protocol.ActionListRooms, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

// hostOptions controls a hosted room
type hostOptions struct {
	startWhen   int
	maxDuration time.Duration
	poll        time.Duration
}

func newRoomsCreateCmd(cfg *Config) *cobra.Command {
	var opts hostOptions

	cmd := &cobra.Command{
		Use:   "create <game-id>",
		Short: "Host a room, start the match when enough players join and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				return hostRoom(cmd.Context(), c, output(cfg, cmd), model.GameID(args[0]), opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.startWhen, "start-when", 0, "Start once this many players are in (default: the game's minimum)")
	cmd.Flags().DurationVar(&opts.maxDuration, "max-duration", 0, "End the match if it runs longer than this (0: no limit)")
	cmd.Flags().DurationVar(&opts.poll, "poll", time.Second, "Room polling interval")

	return cmd
}

func newRoomsJoinCmd(cfg *Config) *cobra.Command {
	var poll time.Duration

	cmd := &cobra.Command{
		Use:   "join <room-id>",
		Short: "Join a room and wait for its match to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				return joinRoom(cmd.Context(), c, output(cfg, cmd), model.RoomID(args[0]), poll)
			})
		},
	}

	cmd.Flags().DurationVar(&poll, "poll", time.Second, "Room polling interval")

	return cmd
}

func hostRoom(ctx context.Context, c *Client, out *Output, gameID model.GameID, opts hostOptions) error {
	var created Room
	if _, err := c.Call(protocol.ActionCreateRoom, map[string]any{"game_id": gameID}, &created); err != nil {
		return err
	}
	out.PrintMessage(fmt.Sprintf("Room %s created for %s on port %d", created.ID, created.GameName, created.Port))

	var startedAt time.Time
	for {
		room, err := findRoom(c, created.ID)
		if err != nil {
			return err
		}

		switch {
		case startedAt.IsZero() && room.Status == string(model.RoomStatusWaiting):
			need := opts.startWhen
			if need <= 0 {
				need = room.MinPlayers
			}
			if len(room.Players) >= need {
				var started StartResult
				if _, err := c.Call(protocol.ActionStartGame, map[string]any{"room_id": room.ID}, &started); err != nil {
					return err
				}
				startedAt = time.Now()
				out.Print(started)
			}
		case !startedAt.IsZero() && room.Status == string(model.RoomStatusWaiting):
			out.PrintMessage(fmt.Sprintf("Match in room %s finished", room.ID))
			return nil
		case !startedAt.IsZero() && opts.maxDuration > 0 && time.Since(startedAt) > opts.maxDuration:
			if _, err := c.Call(protocol.ActionEndGame, map[string]any{"room_id": room.ID}, nil); err != nil {
				return err
			}
			out.PrintMessage(fmt.Sprintf("Match in room %s ended after %s", room.ID, opts.maxDuration))
			return nil
		}

		if !sleep(ctx, opts.poll) {
			out.PrintMessage(fmt.Sprintf("Leaving room %s", created.ID))
			return nil
		}
	}
}

func joinRoom(ctx context.Context, c *Client, out *Output, roomID model.RoomID, poll time.Duration) error {
	var joined Room
	if _, err := c.Call(protocol.ActionJoinRoom, map[string]any{"room_id": roomID}, &joined); err != nil {
		return err
	}
	out.Print(joined)

	playing := joined.Status == string(model.RoomStatusPlaying)
	for {
		if !sleep(ctx, poll) {
			out.PrintMessage(fmt.Sprintf("Leaving room %s", roomID))
			return nil
		}

		room, err := findRoom(c, string(roomID))
		if errors.Is(err, errRoomClosed) && playing {
			out.PrintMessage(fmt.Sprintf("Match in room %s was ended by the host", roomID))
			return nil
		}
		if err != nil {
			return err
		}
		switch {
		case !playing && room.Status == string(model.RoomStatusPlaying):
			playing = true
			out.PrintMessage(fmt.Sprintf("Match started in room %s on port %d", room.ID, room.Port))
		case playing && room.Status == string(model.RoomStatusWaiting):
			out.PrintMessage(fmt.Sprintf("Match in room %s finished", room.ID))
			return nil
		}
	}
}

// findRoom looks a room up in the room listing
func findRoom(c *Client, id string) (Room, error) {
	var result RoomsResult
	if _, err := c.Call(protocol.ActionListRooms, nil, &result); err != nil {
		return Room{}, err
	}
	for _, r := range result.Rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return Room{}, fmt.Errorf("%w: %s", errRoomClosed, id)
}

// sleep waits for d, reporting false if ctx ends first
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
