package game

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game/debate"
)

func (m *Manager) updateDebate(ctx context.Context, sessionID int64, fn func(*debate.Game) error) error {
	return mutate(ctx, m, sessionID, domain.KindDebate, debate.Decode, fn)
}

func (m *Manager) viewDebate(ctx context.Context, sessionID int64, fn func(*debate.Game) error) error {
	return read(ctx, m, sessionID, domain.KindDebate, debate.Decode, fn)
}

// DebateJoin reports a seated player and, once the roster is full, the opened first round.
type DebateJoin struct {
	Player  domain.Member
	Started bool
	Round   debate.RoundInfo
}

// JoinDebate seats a player; the second player starts the debate.
func (m *Manager) JoinDebate(ctx context.Context, sessionID int64, player domain.Member) (DebateJoin, error) {
	var out DebateJoin
	err := m.updateDebate(ctx, sessionID, func(g *debate.Game) error {
		seated, err := g.AddPlayer(player)
		if err != nil {
			return err
		}
		out.Player = seated
		if len(g.Players) < debate.MaxPlayers {
			return nil
		}
		if err := g.Start(m.random()); err != nil {
			return err
		}
		g.OpenRound()
		out.Started = true
		out.Round = g.RoundInfo()
		return nil
	})
	if err == nil && out.Started {
		log.Info().Int64("session", sessionID).Strs("players", []string{out.Round.Positions[0].Name, out.Round.Positions[1].Name}).
			Msg("debate started")
	}
	return out, err
}

func (m *Manager) DebatePhase(ctx context.Context, sessionID int64) (debate.Phase, error) {
	var phase debate.Phase
	err := m.viewDebate(ctx, sessionID, func(g *debate.Game) error {
		phase = g.Phase
		return nil
	})
	return phase, err
}

// CurrentSpeaker gives the floor to the current speaker.
func (m *Manager) CurrentSpeaker(ctx context.Context, sessionID int64) (debate.PlayerPosition, error) {
	var pos debate.PlayerPosition
	err := m.updateDebate(ctx, sessionID, func(g *debate.Game) error {
		var err error
		pos, err = g.CurrentPlayer()
		return err
	})
	return pos, err
}

func (m *Manager) SwitchSpeaker(ctx context.Context, sessionID int64) (debate.PlayerPosition, error) {
	var pos debate.PlayerPosition
	err := m.updateDebate(ctx, sessionID, func(g *debate.Game) error {
		var err error
		pos, err = g.SwitchSpeaker()
		return err
	})
	return pos, err
}

// IssuePoll returns the poll options for the round that just ended.
func (m *Manager) IssuePoll(ctx context.Context, sessionID int64) ([]string, error) {
	var names []string
	err := m.viewDebate(ctx, sessionID, func(g *debate.Game) error {
		if len(g.Players) != debate.MaxPlayers {
			return domain.ErrInsufficientPlayers
		}
		names = g.PlayerNames()
		return nil
	})
	return names, err
}

// RecordPoll stores the issued poll and closes the round until the tally.
func (m *Manager) RecordPoll(ctx context.Context, sessionID int64, pollID int) error {
	return m.updateDebate(ctx, sessionID, func(g *debate.Game) error {
		g.RecordPollID(pollID)
		g.FinishRound()
		return nil
	})
}

func (m *Manager) LastPoll(ctx context.Context, sessionID int64) (id int, ok bool, err error) {
	err = m.viewDebate(ctx, sessionID, func(g *debate.Game) error {
		id, ok = g.PollID()
		return nil
	})
	return id, ok, err
}

// ApplyTallyAndAdvance adds the poll votes and opens the next round. On the last
// round the votes are kept and domain.ErrGameComplete is returned.
func (m *Manager) ApplyTallyAndAdvance(ctx context.Context, sessionID int64, tally map[string]int) (debate.RoundInfo, error) {
	var info debate.RoundInfo
	err := m.updateDebate(ctx, sessionID, func(g *debate.Game) error {
		g.ApplyTally(tally)
		if err := g.Advance(); err != nil {
			return err
		}
		info = g.RoundInfo()
		return nil
	})
	return info, err
}

func (m *Manager) DebateResult(ctx context.Context, sessionID int64) (debate.Result, error) {
	var res debate.Result
	err := m.viewDebate(ctx, sessionID, func(g *debate.Game) error {
		res = g.Result()
		return nil
	})
	return res, err
}

func (m *Manager) DebateRoundInfo(ctx context.Context, sessionID int64) (debate.RoundInfo, error) {
	var info debate.RoundInfo
	err := m.viewDebate(ctx, sessionID, func(g *debate.Game) error {
		info = g.RoundInfo()
		return nil
	})
	return info, err
}
