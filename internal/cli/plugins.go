package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func newPluginsCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List and download client plugins",
	}

	cmd.AddCommand(newPluginsListCmd(cfg))
	cmd.AddCommand(newPluginsDownloadCmd(cfg))

	return cmd
}

func newPluginsListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available plugins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				var result PluginsResult
				if _, err := c.Call(protocol.ActionListPlugins, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

func newPluginsDownloadCmd(cfg *Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <plugin-id>",
		Short: "Download a plugin file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				result, err := c.DownloadPlugin(args[0], dir)
				if err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "plugins", "Directory to save the plugin in")

	return cmd
}
