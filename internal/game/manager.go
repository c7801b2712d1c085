// Package game launches a game instance once prompt intake closes and runs every
// turn action as load, mutate, save inside one store transaction. Dispatch on the
// game kind happens here; the engines themselves are pure state.
package game

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game/debate"
	"github.com/maaaruch/tg-party-bot/internal/game/rating"
	"github.com/maaaruch/tg-party-bot/internal/lobby"
	"github.com/maaaruch/tg-party-bot/internal/storage"
)

// Limits caps how many prompts are drawn for each game kind.
type Limits struct {
	RatingMaxPrompts int
	DebateMaxPrompts int
}

func (l Limits) forKind(kind domain.GameKind) int {
	if kind == domain.KindDebate {
		return l.DebateMaxPrompts
	}
	return l.RatingMaxPrompts
}

type Manager struct {
	store  *storage.Store
	lobby  *lobby.Service
	limits Limits
	now    func() time.Time

	mu  sync.Mutex // guards rnd
	rnd *rand.Rand
}

type Option func(*Manager)

func WithRand(rnd *rand.Rand) Option {
	return func(m *Manager) { m.rnd = rnd }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store *storage.Store, lobbySvc *lobby.Service, limits Limits, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		lobby:  lobbySvc,
		limits: limits,
		now:    time.Now,
		rnd:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Launched describes a freshly created game instance.
type Launched struct {
	Kind    domain.GameKind
	Prompts int
	// First is the first rating prompt; empty for debates, which wait for players.
	First string
}

// Launch creates the session's game instance from its collected prompts. With no
// prompts the session is destroyed and domain.ErrNoPrompts is returned.
func (m *Manager) Launch(ctx context.Context, sessionID int64, kind domain.GameKind) (Launched, error) {
	if !kind.Valid() {
		return Launched{}, domain.ErrWrongGameKind
	}
	var (
		out      Launched
		noPrompt bool
	)
	err := m.store.InTx(ctx, func(tx *storage.Tx) error {
		sess, err := tx.GetSession(sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return domain.ErrEmptySession
		}
		if err != nil {
			return err
		}
		if sess.State != domain.StateGameRunning {
			return domain.ErrCollectionInProgress
		}
		if _, err := tx.GetGame(sessionID); err == nil {
			return domain.ErrGameAlreadyRunning
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		count, err := tx.CountPrompts(sessionID)
		if err != nil {
			return err
		}
		if count == 0 {
			noPrompt = true
			_, err := tx.DeleteSession(sessionID)
			return err
		}

		prompts, err := m.lobby.DrawTx(tx, sessionID, m.limits.forKind(kind))
		if err != nil {
			return err
		}
		var snapshot []byte
		switch kind {
		case domain.KindRating:
			participants, err := tx.ListParticipants(sessionID)
			if err != nil {
				return err
			}
			members := make([]domain.Member, 0, len(participants))
			for _, p := range participants {
				members = append(members, domain.Member{ID: p.ID, Name: p.Name})
			}
			g := rating.New(prompts, members)
			out.First, _ = g.CurrentPrompt()
			snapshot, err = g.Encode()
			if err != nil {
				return err
			}
		case domain.KindDebate:
			snapshot, err = debate.New(prompts).Encode()
			if err != nil {
				return err
			}
		}
		out.Kind = kind
		out.Prompts = len(prompts)
		return tx.PutGame(domain.GameInstance{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Kind:      kind,
			Snapshot:  snapshot,
			UpdatedAt: m.now(),
		})
	})
	if err != nil {
		return Launched{}, err
	}
	if noPrompt {
		log.Info().Int64("session", sessionID).Msg("no prompts collected, session dropped")
		return Launched{}, domain.ErrNoPrompts
	}
	log.Info().Int64("session", sessionID).Str("kind", string(kind)).Int("prompts", out.Prompts).Msg("game launched")
	return out, nil
}

// Kind returns the kind of the session's running game.
func (m *Manager) Kind(ctx context.Context, sessionID int64) (domain.GameKind, error) {
	var kind domain.GameKind
	err := m.store.InTx(ctx, func(tx *storage.Tx) error {
		inst, err := loadInstance(tx, sessionID, domain.KindNone)
		if err != nil {
			return err
		}
		kind = inst.Kind
		return nil
	})
	return kind, err
}

// loadInstance fetches the game envelope; want == KindNone accepts any kind.
func loadInstance(tx *storage.Tx, sessionID int64, want domain.GameKind) (*domain.GameInstance, error) {
	inst, err := tx.GetGame(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNoGame
	}
	if err != nil {
		return nil, err
	}
	if want != domain.KindNone && inst.Kind != want {
		return nil, domain.ErrWrongGameKind
	}
	return inst, nil
}

type engine interface {
	Encode() ([]byte, error)
}

// mutate runs fn against the decoded snapshot and saves it back. fn returning
// domain.ErrGameComplete still saves; the sentinel is reported after commit.
func mutate[G engine](ctx context.Context, m *Manager, sessionID int64, kind domain.GameKind,
	decode func([]byte) (G, error), fn func(G) error) error {
	var complete bool
	err := m.store.InTx(ctx, func(tx *storage.Tx) error {
		inst, err := loadInstance(tx, sessionID, kind)
		if err != nil {
			return err
		}
		g, err := decode(inst.Snapshot)
		if err != nil {
			return err
		}
		if err := fn(g); err != nil {
			if !errors.Is(err, domain.ErrGameComplete) {
				return err
			}
			complete = true
		}
		data, err := g.Encode()
		if err != nil {
			return err
		}
		inst.Snapshot = data
		inst.UpdatedAt = m.now()
		return tx.PutGame(*inst)
	})
	if err == nil && complete {
		return domain.ErrGameComplete
	}
	return err
}

// read runs fn against the decoded snapshot without saving.
func read[G any](ctx context.Context, m *Manager, sessionID int64, kind domain.GameKind,
	decode func([]byte) (G, error), fn func(G) error) error {
	return m.store.InTx(ctx, func(tx *storage.Tx) error {
		inst, err := loadInstance(tx, sessionID, kind)
		if err != nil {
			return err
		}
		g, err := decode(inst.Snapshot)
		if err != nil {
			return err
		}
		return fn(g)
	})
}

func (m *Manager) random() *rand.Rand {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rand.New(rand.NewPCG(m.rnd.Uint64(), m.rnd.Uint64()))
}
