package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/gamestore-lobby/internal/model"
	"github.com/mcoot/gamestore-lobby/internal/protocol"
)

func newGamesCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Browse, download and publish games",
	}

	cmd.AddCommand(newGamesListCmd(cfg))
	cmd.AddCommand(newGamesShowCmd(cfg))
	cmd.AddCommand(newGamesDownloadCmd(cfg))
	cmd.AddCommand(newGamesUploadCmd(cfg))
	cmd.AddCommand(newGamesUpdateCmd(cfg))
	cmd.AddCommand(newGamesUnpublishCmd(cfg))
	cmd.AddCommand(newGamesMineCmd(cfg))

	return cmd
}

func newGamesListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List published games",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, false, func(c *Client) error {
				var result GamesResult
				if _, err := c.Call(protocol.ActionListGames, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

func newGamesShowCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <game-id>",
		Short: "Show a game with its update history and recent reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassPlayer, false, func(c *Client) error {
				var result GameDetail
				if _, err := c.Call(protocol.ActionGetGameDetail, map[string]any{"game_id": args[0]}, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

func newGamesDownloadCmd(cfg *Config) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download <game-id>",
		Short: "Download a game's bundle archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				result, err := c.Download(args[0], dir)
				if err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "downloads", "Directory to save the archive in")

	return cmd
}

func newGamesUploadCmd(cfg *Config) *cobra.Command {
	var info struct {
		name        string
		description string
		version     string
		category    string
		minPlayers  int
		maxPlayers  int
	}

	cmd := &cobra.Command{
		Use:   "upload <bundle.zip>",
		Short: "Publish a new game",
		Long: `Publish a new game from a zip archive. The archive must contain a
config.json manifest naming the server_command used to launch matches.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{
				"game_info": map[string]any{
					"name":        info.name,
					"description": info.description,
					"version":     info.version,
					"game_type":   info.category,
					"min_players": info.minPlayers,
					"max_players": info.maxPlayers,
				},
			}
			return withClient(cfg, model.ClassDeveloper, true, func(c *Client) error {
				var result GameIDResult
				if err := c.Publish(protocol.ActionUploadGame, fields, args[0], &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&info.name, "name", "", "Game name (required)")
	cmd.Flags().StringVar(&info.description, "description", "", "Game description")
	cmd.Flags().StringVar(&info.version, "version", "", "Initial version (default: 1.0.0)")
	cmd.Flags().StringVar(&info.category, "type", "CLI", "Game type: CLI, GUI")
	cmd.Flags().IntVar(&info.minPlayers, "min-players", 0, "Minimum players (default: 2)")
	cmd.Flags().IntVar(&info.maxPlayers, "max-players", 0, "Maximum players (default: 2)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newGamesUpdateCmd(cfg *Config) *cobra.Command {
	var version, notes string

	cmd := &cobra.Command{
		Use:   "update <game-id> <bundle.zip>",
		Short: "Publish a new version of one of your games",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{
				"game_id":      args[0],
				"version":      version,
				"update_notes": notes,
			}
			return withClient(cfg, model.ClassDeveloper, true, func(c *Client) error {
				var result GameIDResult
				if err := c.Publish(protocol.ActionUpdateGame, fields, args[1], &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "New version (required)")
	cmd.Flags().StringVar(&notes, "notes", "", "Update notes")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newGamesUnpublishCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "unpublish <game-id>",
		Short: "Withdraw one of your games from the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassDeveloper, true, func(c *Client) error {
				if _, err := c.Call(protocol.ActionUnpublishGame, map[string]any{"game_id": args[0]}, nil); err != nil {
					return err
				}
				output(cfg, cmd).PrintMessage(fmt.Sprintf("Game %s unpublished", args[0]))
				return nil
			})
		},
	}
}

func newGamesMineCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List your games, including unpublished ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, model.ClassDeveloper, true, func(c *Client) error {
				var result GamesResult
				if _, err := c.Call(protocol.ActionListMyGames, nil, &result); err != nil {
					return err
				}
				output(cfg, cmd).Print(result)
				return nil
			})
		},
	}
}

func newReviewCmd(cfg *Config) *cobra.Command {
	var rating int
	var comment string

	cmd := &cobra.Command{
		Use:   "review <game-id>",
		Short: "Rate a game you have played",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{
				"game_id": args[0],
				"rating":  rating,
				"comment": comment,
			}
			return withClient(cfg, model.ClassPlayer, true, func(c *Client) error {
				if _, err := c.Call(protocol.ActionAddReview, fields, nil); err != nil {
					return err
				}
				output(cfg, cmd).PrintMessage(fmt.Sprintf("Review of %s added", args[0]))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&rating, "rating", 0, "Rating from 1 to 5 (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "Review comment")
	_ = cmd.MarkFlagRequired("rating")

	return cmd
}
