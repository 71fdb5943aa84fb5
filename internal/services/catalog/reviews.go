package catalog

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/mcoot/gamestore-lobby/internal/model"
)

// AddReview records a player's single review of a game they have played
func (s *Service) AddReview(ctx context.Context, player string, id model.GameID, rating int, comment string) error {
	comment = strings.TrimSpace(comment)

	err := s.repo.Update(ctx, func(snap *model.Snapshot) error {
		if _, ok := snap.Games[id]; !ok {
			return model.ErrGameNotFound
		}
		account, ok := snap.Players[player]
		if !ok || !account.HasPlayed(id) {
			return model.ErrNotPlayed
		}
		if rating < 1 || rating > 5 {
			return model.ErrInvalidRating
		}
		if utf8.RuneCountInString(comment) > MaxCommentLength {
			return model.ErrCommentTooLong
		}
		for _, r := range snap.Reviews[id] {
			if r.Username == player {
				return model.ErrAlreadyReviewed
			}
		}
		snap.Reviews[id] = append(snap.Reviews[id], model.Review{
			Username:  player,
			Rating:    rating,
			Comment:   comment,
			CreatedAt: s.clock.Now(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("review added",
		slog.String("game_id", string(id)),
		slog.String("username", player),
		slog.Int("rating", rating),
	)
	return nil
}

// MarkPlayed adds the game to each player's played list
func (s *Service) MarkPlayed(ctx context.Context, players []string, id model.GameID) error {
	return s.repo.Update(ctx, func(snap *model.Snapshot) error {
		for _, name := range players {
			if a, ok := snap.Players[name]; ok {
				a.MarkPlayed(id)
			}
		}
		return nil
	})
}

// Profile returns a player's account details and played games. Games that
// no longer exist are skipped.
func (s *Service) Profile(player string) (*Profile, error) {
	var out *Profile
	s.repo.View(func(snap *model.Snapshot) {
		a, ok := snap.Players[player]
		if !ok {
			return
		}
		out = &Profile{
			Username:    a.Username,
			DisplayName: a.DisplayName,
			CreatedAt:   a.CreatedAt,
			PlayedGames: []PlayedGame{},
		}
		for _, id := range a.PlayedGames {
			if g, ok := snap.Games[id]; ok {
				out.PlayedGames = append(out.PlayedGames, PlayedGame{ID: id, Name: g.Name, Version: g.Version})
			}
		}
	})
	if out == nil {
		return nil, model.ErrAccountNotFound
	}
	return out, nil
}
