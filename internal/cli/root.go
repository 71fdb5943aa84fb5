package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(DefaultConfig())
}

func newRootCmd(cfg *Config) *cobra.Command {

	rootCmd := &cobra.Command{
		Use:   "lobbyctl",
		Short: "CLI tool for the game store lobby",
		Long: `lobbyctl talks to the game store lobby over its framed TCP protocol.

Players browse, download and review games and host or join rooms.
Developers publish, update and unpublish games. Game servers report
match results with report-result.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.Server, "server", cfg.Server, "Lobby address host:port (env: LOBBY_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Class, "class", cfg.Class, "Account class for register: player, developer (env: LOBBY_CLASS)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Username, "username", "u", cfg.Username, "Account username (env: LOBBY_USERNAME)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Password, "password", "p", cfg.Password, "Account password (env: LOBBY_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")

	// Add subcommands
	rootCmd.AddCommand(newRegisterCmd(cfg))
	rootCmd.AddCommand(newProfileCmd(cfg))
	rootCmd.AddCommand(newLobbyCmd(cfg))
	rootCmd.AddCommand(newGamesCmd(cfg))
	rootCmd.AddCommand(newPluginsCmd(cfg))
	rootCmd.AddCommand(newReviewCmd(cfg))
	rootCmd.AddCommand(newRoomsCmd(cfg))
	rootCmd.AddCommand(newReportResultCmd(cfg))

	return rootCmd
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so long-running room commands can leave cleanly.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cfg := DefaultConfig()
	err := newRootCmd(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		NewOutput(cfg.Output, os.Stdout).PrintError(os.Stderr, err)
		os.Exit(1)
	}
}

// withClient opens a connection as class, logs in when login is set, runs
// fn and closes the connection
func withClient(cfg *Config, class model.ClientClass, login bool, fn func(c *Client) error) error {
	c, err := Dial(cfg.Server, class, cfg.Timeout)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	if login {
		if cfg.Username == "" || cfg.Password == "" {
			return errors.New("--username and --password are required")
		}
		if _, err := c.Login(cfg.Username, cfg.Password); err != nil {
			return err
		}
	}
	return fn(c)
}

func output(cfg *Config, cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout())
}
