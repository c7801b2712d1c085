// Package debate implements the two-player debate game. Each round one prompt is
// argued from opposite positions, both players speak once, and a chat poll decides
// who argued better. Positions swap every round; votes accumulate over the game.
package debate

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"

	"github.com/maaaruch/tg-party-bot/internal/domain"
)

const MaxPlayers = 2

// MaxNameRunes keeps a player name, suffix included, within a Telegram poll option.
const MaxNameRunes = 90

type Phase string

const (
	PhaseGathering        Phase = "gathering_players"
	PhaseReadyForAnswer   Phase = "ready_for_answer"
	PhaseAnswering        Phase = "answering"
	PhaseReadyForNextWord Phase = "ready_for_next_word"
)

type Position string

const (
	PositionUnset   Position = ""
	PositionFor     Position = "for"
	PositionAgainst Position = "against"
)

func (p Position) Opposite() Position {
	switch p {
	case PositionFor:
		return PositionAgainst
	case PositionAgainst:
		return PositionFor
	}
	return PositionUnset
}

// Game is the full mutable state of one debate.
type Game struct {
	Prompts    []string            `json:"prompts"`
	Players    []domain.Member     `json:"players"`
	Round      int                 `json:"round"` // 0-based index into Prompts
	Word       string              `json:"word"`
	Speaker    int                 `json:"speaker"`
	Scores     map[string]int      `json:"scores"` // by player name, as poll options are
	Positions  map[string]Position `json:"positions"`
	CanSwitch  bool                `json:"can_switch"`
	Phase      Phase               `json:"phase"`
	LastPollID int                 `json:"last_poll_id,omitempty"`
}

type PlayerPosition struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

type RoundInfo struct {
	Round     int              `json:"round"` // 1-based
	Word      string           `json:"word"`
	Positions []PlayerPosition `json:"positions"`
}

type PlayerScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Result is the final standing. Winner is empty when Tie is set.
type Result struct {
	Players []PlayerScore `json:"players"`
	Winner  string        `json:"winner,omitempty"`
	Tie     bool          `json:"tie"`
}

func New(prompts []string) *Game {
	return &Game{
		Prompts:   append([]string{}, prompts...),
		Players:   []domain.Member{},
		Scores:    map[string]int{},
		Positions: map[string]Position{},
		CanSwitch: true,
		Phase:     PhaseGathering,
	}
}

// AddPlayer seats a player with zero score and no position. Long names are cut to
// MaxNameRunes; a name already taken by the other player gets a numeric suffix so
// poll options stay distinct.
func (g *Game) AddPlayer(p domain.Member) (domain.Member, error) {
	for _, existing := range g.Players {
		if existing.ID == p.ID {
			return domain.Member{}, domain.ErrAlreadyPlaying
		}
	}
	if len(g.Players) >= MaxPlayers {
		return domain.Member{}, domain.ErrRosterFull
	}
	p.Name = truncate(p.Name, MaxNameRunes)
	if _, taken := g.Scores[p.Name]; taken {
		suffix := fmt.Sprintf(" (%d)", len(g.Players)+1)
		p.Name = truncate(p.Name, MaxNameRunes-len(suffix)) + suffix
	}
	g.Players = append(g.Players, p)
	g.Scores[p.Name] = 0
	g.Positions[p.Name] = PositionUnset
	return p, nil
}

// Start assigns opposite positions at random and opens the first prompt.
func (g *Game) Start(rnd *rand.Rand) error {
	if len(g.Players) != MaxPlayers {
		return domain.ErrInsufficientPlayers
	}
	if len(g.Prompts) == 0 {
		return domain.ErrNoPrompts
	}
	first := PositionFor
	if rnd.IntN(2) == 1 {
		first = PositionAgainst
	}
	g.Positions[g.Players[0].Name] = first
	g.Positions[g.Players[1].Name] = first.Opposite()
	g.Round = 0
	g.Word = g.Prompts[0]
	g.Speaker = 0
	g.CanSwitch = true
	g.Phase = PhaseReadyForNextWord
	return nil
}

// OpenRound marks the current prompt as ready for the speakers.
func (g *Game) OpenRound() {
	g.Phase = PhaseReadyForAnswer
}

// FinishRound marks that both speakers are done and the round poll is out.
func (g *Game) FinishRound() {
	g.Phase = PhaseReadyForNextWord
}

// CurrentPlayer returns the speaker whose turn it is and puts the game into answering.
func (g *Game) CurrentPlayer() (PlayerPosition, error) {
	if len(g.Players) != MaxPlayers {
		return PlayerPosition{}, domain.ErrInsufficientPlayers
	}
	g.Phase = PhaseAnswering
	name := g.Players[g.Speaker].Name
	return PlayerPosition{Name: name, Position: g.Positions[name]}, nil
}

// SwitchSpeaker hands the floor to the second player. A round has exactly two
// speaker turns; switching after the second is refused until the next round.
func (g *Game) SwitchSpeaker() (PlayerPosition, error) {
	if len(g.Players) != MaxPlayers {
		return PlayerPosition{}, domain.ErrInsufficientPlayers
	}
	if !g.CanSwitch || g.Speaker >= len(g.Players)-1 {
		return PlayerPosition{}, domain.ErrAllPlayersAnswered
	}
	g.Speaker++
	g.CanSwitch = g.Speaker < len(g.Players)-1
	name := g.Players[g.Speaker].Name
	return PlayerPosition{Name: name, Position: g.Positions[name]}, nil
}

// SetScore adds delta to the player's cumulative score.
func (g *Game) SetScore(playerName string, delta int) {
	g.Scores[playerName] += delta
}

// ApplyTally adds every poll option's vote count to the matching player.
func (g *Game) ApplyTally(tally map[string]int) {
	for _, p := range g.Players {
		if votes, ok := tally[p.Name]; ok {
			g.SetScore(p.Name, votes)
		}
	}
}

// Advance moves to the next prompt, swapping positions and resetting the speaker
// order. On the last prompt it returns domain.ErrGameComplete and changes nothing.
func (g *Game) Advance() error {
	if g.Round+1 >= len(g.Prompts) {
		return domain.ErrGameComplete
	}
	g.Round++
	for _, p := range g.Players {
		g.Positions[p.Name] = g.Positions[p.Name].Opposite()
	}
	g.Word = g.Prompts[g.Round]
	g.Speaker = 0
	g.CanSwitch = true
	g.Phase = PhaseReadyForAnswer
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func (g *Game) RecordPollID(id int) {
	g.LastPollID = id
}

func (g *Game) PollID() (int, bool) {
	return g.LastPollID, g.LastPollID != 0
}

func (g *Game) PlayerNames() []string {
	names := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		names = append(names, p.Name)
	}
	return names
}

func (g *Game) RoundInfo() RoundInfo {
	info := RoundInfo{Round: g.Round + 1, Word: g.Word}
	for _, p := range g.Players {
		info.Positions = append(info.Positions, PlayerPosition{Name: p.Name, Position: g.Positions[p.Name]})
	}
	return info
}

// Result picks the unique top scorer; equal scores are a tie.
func (g *Game) Result() Result {
	var res Result
	best := 0
	leaders := 0
	for i, p := range g.Players {
		score := g.Scores[p.Name]
		res.Players = append(res.Players, PlayerScore{Name: p.Name, Score: score})
		switch {
		case i == 0 || score > best:
			best = score
			leaders = 1
			res.Winner = p.Name
		case score == best:
			leaders++
		}
	}
	if leaders != 1 {
		res.Winner = ""
		res.Tie = true
	}
	return res
}

func (g *Game) Encode() ([]byte, error) {
	return json.Marshal(g)
}

func Decode(data []byte) (*Game, error) {
	var g Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode debate snapshot: %w", err)
	}
	if g.Scores == nil {
		g.Scores = map[string]int{}
	}
	if g.Positions == nil {
		g.Positions = map[string]Position{}
	}
	if g.Speaker < 0 || (len(g.Players) > 0 && g.Speaker >= len(g.Players)) {
		return nil, fmt.Errorf("decode debate snapshot: speaker %d out of range", g.Speaker)
	}
	return &g, nil
}
