package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func newRegisterCmd(cfg *Config) *cobra.Command {
	var displayName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long:  "Create a player or developer account (select with --class) using --username and --password.",
		RunE: func(cmd *cobra.Command, args []string) error {
			class := model.ClientClass(cfg.Class)
			if !class.Valid() {
				return fmt.Errorf("invalid --class %q: must be player or developer", cfg.Class)
			}
			if cfg.Username == "" || cfg.Password == "" {
				return fmt.Errorf("--username and --password are required")
			}

			return withClient(cfg, class, false, func(c *Client) error {
				if err := c.Register(cfg.Username, cfg.Password, displayName); err != nil {
					return err
				}
				output(cfg, cmd).PrintMessage(fmt.Sprintf("Registered %s account %s", class, cfg.Username))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "Display name (default: username)")

	return cmd
}

func newProfileCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show your player profile and played games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				var result Profile
				if _, err := c.Call(protocol.ActionGetPlayerProfile, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

func newLobbyCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "lobby",
		Short: "Show who is online, open rooms and the number of games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, false, func(c *Client) error {
				var result LobbyInfo
				if _, err := c.Call(protocol.ActionGetLobbyInfo, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}
