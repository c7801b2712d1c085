// Package rating implements the rating game: every participant scores every
// prompt from -10 to 10, one prompt per round.
//
// Scores are keyed by (prompt, participant) rather than accumulated, so a
// participant can correct a score any number of times before the round advances.
package rating

import (
	"encoding/json"
	"fmt"

	"github.com/maaaruch/tg-party-bot/internal/domain"
)

const (
	MinScore = -10
	MaxScore = 10
)

// Game is the full mutable state of one rating game.
type Game struct {
	Prompts      []string        `json:"prompts"`
	Participants []domain.Member `json:"participants"`
	Round        int             `json:"round"`  // 1-based
	Scores       []map[int64]int `json:"scores"` // per prompt index: participant -> score
	Totals       []int           `json:"totals"`
}

type ParticipantScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// RoundStats summarizes the prompt currently being rated.
type RoundStats struct {
	Prompt string             `json:"prompt"`
	Total  int                `json:"total"`
	Scores []ParticipantScore `json:"scores"`
}

type PromptTotal struct {
	Prompt string `json:"prompt"`
	Total  int    `json:"total"`
}

func New(prompts []string, participants []domain.Member) *Game {
	g := &Game{
		Prompts:      append([]string{}, prompts...),
		Participants: append([]domain.Member{}, participants...),
		Round:        1,
		Scores:       make([]map[int64]int, len(prompts)),
		Totals:       make([]int, len(prompts)),
	}
	for i := range g.Scores {
		g.Scores[i] = make(map[int64]int, len(participants))
		for _, p := range participants {
			g.Scores[i][p.ID] = 0
		}
	}
	return g
}

func (g *Game) isMember(id int64) bool {
	for _, p := range g.Participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// SetScore overwrites the participant's score for the current prompt. Scores from
// non-members, out-of-range scores and scores after the last round are ignored;
// the return value reports whether the score was applied.
func (g *Game) SetScore(participantID int64, score int) bool {
	if g.Round < 1 || g.Round > len(g.Prompts) {
		return false
	}
	if !g.isMember(participantID) || score < MinScore || score > MaxScore {
		return false
	}
	idx := g.Round - 1
	g.Scores[idx][participantID] = score

	total := 0
	for _, s := range g.Scores[idx] {
		total += s
	}
	g.Totals[idx] = total
	return true
}

// CurrentPrompt returns the prompt of the current round, or false once rounds are exhausted.
func (g *Game) CurrentPrompt() (string, bool) {
	if g.Round < 1 || g.Round > len(g.Prompts) {
		return "", false
	}
	return g.Prompts[g.Round-1], true
}

// Advance moves to the next prompt; on the last round it returns domain.ErrGameComplete.
func (g *Game) Advance() error {
	if g.Round >= len(g.Prompts) {
		return domain.ErrGameComplete
	}
	g.Round++
	return nil
}

func (g *Game) RoundStats() (RoundStats, bool) {
	prompt, ok := g.CurrentPrompt()
	if !ok {
		return RoundStats{}, false
	}
	idx := g.Round - 1
	stats := RoundStats{Prompt: prompt, Total: g.Totals[idx]}
	for _, p := range g.Participants {
		stats.Scores = append(stats.Scores, ParticipantScore{Name: p.Name, Score: g.Scores[idx][p.ID]})
	}
	return stats, true
}

// FinalScores returns every prompt's total in original prompt order.
func (g *Game) FinalScores() []PromptTotal {
	out := make([]PromptTotal, 0, len(g.Prompts))
	for i, prompt := range g.Prompts {
		out = append(out, PromptTotal{Prompt: prompt, Total: g.Totals[i]})
	}
	return out
}

func (g *Game) Encode() ([]byte, error) {
	return json.Marshal(g)
}

func Decode(data []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode rating snapshot: %w", err)
	}
	if len(g.Scores) != len(g.Prompts) || len(g.Totals) != len(g.Prompts) {
		return nil, fmt.Errorf("decode rating snapshot: %d prompts, %d score rows, %d totals",
			len(g.Prompts), len(g.Scores), len(g.Totals))
	}
	return &g, nil
}
