package lobby

import (
	"errors"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/storage"
)

// Guards run inside the caller's transaction, before any mutation.

func requireSession(tx *storage.Tx, sessionID int64) (*domain.Session, error) {
	sess, err := tx.GetSession(sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrEmptySession
	}
	return sess, err
}

func requireMembers(tx *storage.Tx, sessionID int64) ([]domain.Participant, error) {
	members, err := tx.ListParticipants(sessionID)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, domain.ErrEmptySession
	}
	return members, nil
}

func requireState(sess *domain.Session, want domain.SessionState, otherwise error) error {
	if sess.State != want {
		return otherwise
	}
	return nil
}

func requireNoTimer(tx *storage.Tx, sessionID int64) error {
	_, err := tx.GetTimer(sessionID)
	switch {
	case err == nil:
		return domain.ErrCollectionAlreadyUsed
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return err
	}
}

func requireParticipant(tx *storage.Tx, userID int64) (*domain.Participant, error) {
	p, err := tx.GetParticipant(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNotInSession
	}
	return p, err
}

func requireNotAttached(tx *storage.Tx, userID int64) error {
	_, err := tx.GetParticipant(userID)
	switch {
	case err == nil:
		return domain.ErrAlreadyInSession
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return err
	}
}
