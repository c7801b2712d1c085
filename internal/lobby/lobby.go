// Package lobby implements the session lifecycle and prompt intake of a chat party:
// membership, the WaitingForMembers → CollectingPrompts → GameRunning transitions,
// the single collection timer and per-participant prompt quotas.
//
// Every operation is one storage transaction; guards are checked inside the same
// transaction that mutates, so concurrent actions on one session cannot interleave.
package lobby

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/storage"
)

type Service struct {
	store   *storage.Store
	quota   int
	window  time.Duration
	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithShuffle replaces the permutation source used by DrawPrompts.
func WithShuffle(shuffle func(n int, swap func(i, j int))) Option {
	return func(s *Service) { s.shuffle = shuffle }
}

func New(store *storage.Store, quota int, window time.Duration, opts ...Option) *Service {
	s := &Service{
		store:   store,
		quota:   quota,
		window:  window,
		now:     time.Now,
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Quota() int {
	return s.quota
}

// Join attaches the participant to the chat's session, creating the session on first join.
func (s *Service) Join(ctx context.Context, sessionID int64, p domain.Participant) error {
	return s.store.InTx(ctx, func(tx *storage.Tx) error {
		if err := requireNotAttached(tx, p.ID); err != nil {
			return err
		}
		_, err := tx.GetSession(sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			if err := tx.CreateSession(sessionID, s.now()); err != nil {
				return err
			}
			log.Debug().Int64("session", sessionID).Msg("session created")
		} else if err != nil {
			return err
		}
		p.SessionID = sessionID
		return tx.InsertParticipant(p)
	})
}

// ListMembers returns display names in join order. A missing session has no members.
func (s *Service) ListMembers(ctx context.Context, sessionID int64) ([]string, error) {
	names := []string{}
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		members, err := tx.ListParticipants(sessionID)
		if err != nil {
			return err
		}
		for _, m := range members {
			names = append(names, m.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Members returns id/name pairs in join order.
func (s *Service) Members(ctx context.Context, sessionID int64) ([]domain.Member, error) {
	var out []domain.Member
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		members, err := tx.ListParticipants(sessionID)
		if err != nil {
			return err
		}
		out = membersOf(members)
		return nil
	})
	return out, err
}

func membersOf(participants []domain.Participant) []domain.Member {
	out := make([]domain.Member, 0, len(participants))
	for _, p := range participants {
		out = append(out, domain.Member{ID: p.ID, Name: p.Name})
	}
	return out
}

// Destroy deletes the session with everything attached to it. It is refused while
// the collection timer is running; destroying a missing session is a no-op.
func (s *Service) Destroy(ctx context.Context, sessionID int64) error {
	return s.store.InTx(ctx, func(tx *storage.Tx) error {
		timer, err := tx.GetTimer(sessionID)
		if err == nil && timer.Running(s.now()) {
			return domain.ErrCollectionInProgress
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		deleted, err := tx.DeleteSession(sessionID)
		if err != nil {
			return err
		}
		if deleted {
			log.Debug().Int64("session", sessionID).Msg("session destroyed")
		}
		return nil
	})
}

// BeginCollection opens the prompt collection window for the game kind the chat asked for.
func (s *Service) BeginCollection(ctx context.Context, sessionID int64, kind domain.GameKind) (domain.CollectionTimer, error) {
	var timer domain.CollectionTimer
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		sess, err := requireSession(tx, sessionID)
		if err != nil {
			return err
		}
		if _, err := requireMembers(tx, sessionID); err != nil {
			return err
		}
		if err := requireNoTimer(tx, sessionID); err != nil {
			return err
		}
		if err := requireState(sess, domain.StateWaitingForMembers, domain.ErrGameAlreadyRunning); err != nil {
			return err
		}

		start := s.now()
		timer = domain.CollectionTimer{SessionID: sessionID, Start: start, End: start.Add(s.window)}
		if err := tx.InsertTimer(timer); err != nil {
			return err
		}
		if err := tx.SetSessionKind(sessionID, kind); err != nil {
			return err
		}
		return tx.SetSessionState(sessionID, domain.StateCollectingPrompts)
	})
	if err != nil {
		return domain.CollectionTimer{}, err
	}
	log.Debug().Int64("session", sessionID).Str("from", string(domain.StateWaitingForMembers)).
		Str("to", string(domain.StateCollectingPrompts)).Time("ends", timer.End).Msg("collection started")
	return timer, nil
}

// SubmitPrompt stores a prompt for the participant's session and returns how many
// more prompts the participant may submit.
func (s *Service) SubmitPrompt(ctx context.Context, userID int64, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.ErrEmptyPrompt
	}

	var remaining int
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		p, err := requireParticipant(tx, userID)
		if err != nil {
			return err
		}
		sess, err := requireSession(tx, p.SessionID)
		if err != nil {
			return err
		}
		if err := requireState(sess, domain.StateCollectingPrompts, domain.ErrCollectionClosed); err != nil {
			return err
		}
		now := s.now()
		timer, err := tx.GetTimer(sess.ID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if timer != nil && timer.Used(now) {
			return domain.ErrCollectionClosed
		}

		count, err := tx.CountPromptsByParticipant(userID)
		if err != nil {
			return err
		}
		if count >= s.quota {
			return domain.ErrQuotaExceeded
		}
		prompt := domain.Prompt{ID: uuid.NewString(), SessionID: sess.ID, ParticipantID: userID, Value: value}
		if err := tx.InsertPrompt(prompt, now); err != nil {
			return err
		}
		remaining = s.quota - (count + 1)
		return nil
	})
	return remaining, err
}

// CloseCollection moves a collecting session to GameRunning. Calling it again, or
// for a session that no longer exists, does nothing.
func (s *Service) CloseCollection(ctx context.Context, sessionID int64) error {
	return s.store.InTx(ctx, func(tx *storage.Tx) error {
		sess, err := tx.GetSession(sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sess.State != domain.StateCollectingPrompts {
			return nil
		}
		log.Debug().Int64("session", sessionID).Str("from", string(sess.State)).
			Str("to", string(domain.StateGameRunning)).Msg("collection closed")
		return tx.SetSessionState(sessionID, domain.StateGameRunning)
	})
}

func (s *Service) CountPrompts(ctx context.Context, sessionID int64) (int, error) {
	var n int
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		var err error
		n, err = tx.CountPrompts(sessionID)
		return err
	})
	return n, err
}

// DrawPrompts returns a uniformly random selection of at most maxCount distinct prompt values.
func (s *Service) DrawPrompts(ctx context.Context, sessionID int64, maxCount int) ([]string, error) {
	var drawn []string
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		var err error
		drawn, err = s.DrawTx(tx, sessionID, maxCount)
		return err
	})
	return drawn, err
}

// DrawTx is DrawPrompts inside an existing transaction.
func (s *Service) DrawTx(tx *storage.Tx, sessionID int64, maxCount int) ([]string, error) {
	values, err := tx.DistinctPromptValues(sessionID)
	if err != nil {
		return nil, err
	}
	s.shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	if maxCount < 0 {
		maxCount = 0
	}
	if len(values) > maxCount {
		values = values[:maxCount]
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

// Pending is a collection whose close or game launch has to be scheduled.
type Pending struct {
	SessionID int64
	Kind      domain.GameKind
	EndsAt    time.Time
	Closed    bool
}

// PendingCollections lists sessions still collecting prompts, e.g. after a restart,
// and closed sessions whose game was never launched.
func (s *Service) PendingCollections(ctx context.Context) ([]Pending, error) {
	var out []Pending
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		collecting, err := tx.ListSessionsByState(domain.StateCollectingPrompts)
		if err != nil {
			return err
		}
		for _, sess := range collecting {
			p, err := s.pendingOf(tx, sess)
			if err != nil {
				return err
			}
			out = append(out, p)
		}

		running, err := tx.ListSessionsByState(domain.StateGameRunning)
		if err != nil {
			return err
		}
		for _, sess := range running {
			_, err := tx.GetGame(sess.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			p, err := s.pendingOf(tx, sess)
			if err != nil {
				return err
			}
			p.Closed = true
			out = append(out, p)
		}
		return nil
	})
	return out, err
}

func (s *Service) pendingOf(tx *storage.Tx, sess domain.Session) (Pending, error) {
	p := Pending{SessionID: sess.ID, Kind: sess.Kind}
	timer, err := tx.GetTimer(sess.ID)
	switch {
	case err == nil:
		p.EndsAt = timer.End
	case errors.Is(err, storage.ErrNotFound):
		p.EndsAt = s.now()
	default:
		return Pending{}, err
	}
	return p, nil
}

// Overview is a read-only picture of one session.
type Overview struct {
	Session domain.Session
	Members []string
	Prompts int
	Timer   *domain.CollectionTimer
	Game    *domain.GameInstance
}

// Overview returns the session with its members, prompt count, timer and game;
// a missing session is domain.ErrEmptySession.
func (s *Service) Overview(ctx context.Context, sessionID int64) (Overview, error) {
	var ov Overview
	err := s.store.InTx(ctx, func(tx *storage.Tx) error {
		sess, err := requireSession(tx, sessionID)
		if err != nil {
			return err
		}
		ov.Session = *sess

		members, err := tx.ListParticipants(sessionID)
		if err != nil {
			return err
		}
		ov.Members = make([]string, 0, len(members))
		for _, m := range members {
			ov.Members = append(ov.Members, m.Name)
		}
		if ov.Prompts, err = tx.CountPrompts(sessionID); err != nil {
			return err
		}

		timer, err := tx.GetTimer(sessionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ov.Timer = timer
		g, err := tx.GetGame(sessionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		ov.Game = g
		return nil
	})
	return ov, err
}
