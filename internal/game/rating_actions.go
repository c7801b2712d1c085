package game

import (
	"context"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game/rating"
)

func (m *Manager) updateRating(ctx context.Context, sessionID int64, fn func(*rating.Game) error) error {
	return mutate(ctx, m, sessionID, domain.KindRating, rating.Decode, fn)
}

func (m *Manager) viewRating(ctx context.Context, sessionID int64, fn func(*rating.Game) error) error {
	return read(ctx, m, sessionID, domain.KindRating, rating.Decode, fn)
}

// RateCurrent records the participant's score for the current prompt. Out-of-range
// scores and non-members are ignored; applied reports whether the score counted.
func (m *Manager) RateCurrent(ctx context.Context, sessionID, userID int64, score int) (applied bool, err error) {
	err = m.updateRating(ctx, sessionID, func(g *rating.Game) error {
		applied = g.SetScore(userID, score)
		return nil
	})
	return applied, err
}

func (m *Manager) CurrentPrompt(ctx context.Context, sessionID int64) (prompt string, ok bool, err error) {
	err = m.viewRating(ctx, sessionID, func(g *rating.Game) error {
		prompt, ok = g.CurrentPrompt()
		return nil
	})
	return prompt, ok, err
}

func (m *Manager) RoundStats(ctx context.Context, sessionID int64) (stats rating.RoundStats, ok bool, err error) {
	err = m.viewRating(ctx, sessionID, func(g *rating.Game) error {
		stats, ok = g.RoundStats()
		return nil
	})
	return stats, ok, err
}

// RatingStep is what the chat sees when a rating round closes.
type RatingStep struct {
	Finished rating.RoundStats
	Next     string
}

// AdvanceRating closes the current round. After the last round it returns the
// finished round's stats together with domain.ErrGameComplete.
func (m *Manager) AdvanceRating(ctx context.Context, sessionID int64) (RatingStep, error) {
	var step RatingStep
	err := m.updateRating(ctx, sessionID, func(g *rating.Game) error {
		step.Finished, _ = g.RoundStats()
		if err := g.Advance(); err != nil {
			return err
		}
		step.Next, _ = g.CurrentPrompt()
		return nil
	})
	return step, err
}

func (m *Manager) RatingResult(ctx context.Context, sessionID int64) ([]rating.PromptTotal, error) {
	var totals []rating.PromptTotal
	err := m.viewRating(ctx, sessionID, func(g *rating.Game) error {
		totals = g.FinalScores()
		return nil
	})
	return totals, err
}
