package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/protocol"
	"github.com/mcoot/gamestore-lobby/internal/services/launcher"
)

func newReportResultCmd(cfg *Config) *cobra.Command {
	var roomID, token, result string

	cmd := &cobra.Command{
		Use:   "report-result",
		Short: "Report a finished match from a game server",
		Long: `Report a finished match from a game server process.

The room, token and lobby port default to the LOBBY_ROOM_ID,
LOBBY_WORKER_TOKEN and LOBBY_CALLBACK_PORT variables the lobby sets on
every game server it launches.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if roomID == "" {
				return fmt.Errorf("--room-id is required")
			}
			body, err := rawJSON(result)
			if err != nil {
				return err
			}

			addr := cfg.Server
			if port := os.Getenv(launcher.EnvCallbackPort); port != "" && !cmd.Flags().Changed("server") {
				addr = "127.0.0.1:" + port
			}

			c, err := Dial(addr, "", cfg.Timeout)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			fields := map[string]any{
				"room_id":      roomID,
				"worker_token": token,
				"result":       body,
			}
			if _, err := c.Call(protocol.ActionReportGameResult, fields, nil); err != nil {
				return err
			}
			output(cfg, cmd).PrintMessage(fmt.Sprintf("Result for room %s recorded", roomID))
			return nil
		},
	}

	cmd.Flags().StringVar(&roomID, "room-id", os.Getenv(launcher.EnvRoomID), "Room the match ran in (env: LOBBY_ROOM_ID)")
	cmd.Flags().StringVar(&token, "worker-token", os.Getenv(launcher.EnvWorkerToken), "Token issued at launch (env: LOBBY_WORKER_TOKEN)")
	cmd.Flags().StringVar(&result, "result", "", "Match result as a JSON document")

	return cmd
}
