package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maaaruch/tg-party-bot/internal/domain"
)

//go:embed schema.sql
var embeddedSchema embed.FS

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DSN builds a go-sqlite3 data source name with foreign keys on and
// transactions that take the write lock at BEGIN.
func DSN(path string) string {
	return "file:" + path + "?_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"
}

func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return err
	}

	b, err := embeddedSchema.ReadFile("schema.sql")
	if err != nil {
		return err
	}

	schema := strings.TrimSpace(string(b))
	_, err = s.db.Exec(schema)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx is one read-modify-write unit over the session tables.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx, ctx: ctx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ---------- Sessions ----------

func (t *Tx) GetSession(id int64) (*domain.Session, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT chat_id, state, game_kind, created_at FROM sessions WHERE chat_id = ?`, id)
	var (
		sess      domain.Session
		state     string
		kind      string
		createdAt int64
	)
	if err := row.Scan(&sess.ID, &state, &kind, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess.State = domain.SessionState(state)
	sess.Kind = domain.GameKind(kind)
	sess.CreatedAt = fromMillis(createdAt)
	return &sess, nil
}

func (t *Tx) CreateSession(id int64, createdAt time.Time) error {
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO sessions(chat_id, state, created_at) VALUES (?, ?, ?)`,
		id, string(domain.StateWaitingForMembers), millis(createdAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (t *Tx) SetSessionState(id int64, state domain.SessionState) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE sessions SET state = ? WHERE chat_id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("set session state: %w", err)
	}
	return nil
}

func (t *Tx) SetSessionKind(id int64, kind domain.GameKind) error {
	_, err := t.tx.ExecContext(t.ctx, `UPDATE sessions SET game_kind = ? WHERE chat_id = ?`, string(kind), id)
	if err != nil {
		return fmt.Errorf("set session kind: %w", err)
	}
	return nil
}

// DeleteSession removes the session; participants, prompts, timer and game go with it.
func (t *Tx) DeleteSession(id int64) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM sessions WHERE chat_id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (t *Tx) ListSessionsByState(state domain.SessionState) ([]domain.Session, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT chat_id, game_kind, created_at FROM sessions WHERE state = ? ORDER BY chat_id`, string(state))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var (
			sess      domain.Session
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&sess.ID, &kind, &createdAt); err != nil {
			return nil, err
		}
		sess.State = state
		sess.Kind = domain.GameKind(kind)
		sess.CreatedAt = fromMillis(createdAt)
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ---------- Participants ----------

func (t *Tx) GetParticipant(userID int64) (*domain.Participant, error) {
	row := t.tx.QueryRowContext(t.ctx, `
SELECT user_id, session_id, name, IFNULL(handle, ''), position
FROM participants
WHERE user_id = ?
`, userID)
	var p domain.Participant
	if err := row.Scan(&p.ID, &p.SessionID, &p.Name, &p.Handle, &p.Position); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return &p, nil
}

// InsertParticipant appends p to the end of its session's join order.
func (t *Tx) InsertParticipant(p domain.Participant) error {
	var handle any
	if p.Handle != "" {
		handle = p.Handle
	}
	_, err := t.tx.ExecContext(t.ctx, `
INSERT INTO participants(user_id, session_id, name, handle, position)
VALUES (?, ?, ?, ?, (SELECT IFNULL(MAX(position), 0) + 1 FROM participants WHERE session_id = ?))
`, p.ID, p.SessionID, p.Name, handle, p.SessionID)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (t *Tx) ListParticipants(sessionID int64) ([]domain.Participant, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
SELECT user_id, name, IFNULL(handle, ''), position
FROM participants
WHERE session_id = ?
ORDER BY position
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		p := domain.Participant{SessionID: sessionID}
		if err := rows.Scan(&p.ID, &p.Name, &p.Handle, &p.Position); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

// ---------- Prompts ----------

func (t *Tx) InsertPrompt(p domain.Prompt, createdAt time.Time) error {
	_, err := t.tx.ExecContext(t.ctx, `
INSERT INTO prompts(id, session_id, participant_id, value, created_at)
VALUES (?, ?, ?, ?, ?)
`, p.ID, p.SessionID, p.ParticipantID, p.Value, millis(createdAt))
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	return nil
}

func (t *Tx) CountPromptsByParticipant(userID int64) (int, error) {
	var cnt int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(1) FROM prompts WHERE participant_id = ?`, userID).Scan(&cnt)
	if err != nil {
		return 0, fmt.Errorf("count participant prompts: %w", err)
	}
	return cnt, nil
}

func (t *Tx) CountPrompts(sessionID int64) (int, error) {
	var cnt int
	err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(1) FROM prompts WHERE session_id = ?`, sessionID).Scan(&cnt)
	if err != nil {
		return 0, fmt.Errorf("count prompts: %w", err)
	}
	return cnt, nil
}

// DistinctPromptValues returns each prompt value of the session once, in submission order.
func (t *Tx) DistinctPromptValues(sessionID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
SELECT value
FROM prompts
WHERE session_id = ?
GROUP BY value
ORDER BY MIN(created_at), MIN(rowid)
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("distinct prompts: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// ---------- Collection timers ----------

func (t *Tx) GetTimer(sessionID int64) (*domain.CollectionTimer, error) {
	var start, end int64
	err := t.tx.QueryRowContext(t.ctx, `SELECT start_time, end_time FROM collection_timers WHERE session_id = ?`, sessionID).Scan(&start, &end)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get timer: %w", err)
	}
	return &domain.CollectionTimer{SessionID: sessionID, Start: fromMillis(start), End: fromMillis(end)}, nil
}

func (t *Tx) InsertTimer(timer domain.CollectionTimer) error {
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO collection_timers(session_id, start_time, end_time) VALUES (?, ?, ?)`,
		timer.SessionID, millis(timer.Start), millis(timer.End))
	if err != nil {
		return fmt.Errorf("insert timer: %w", err)
	}
	return nil
}

// ---------- Games ----------

func (t *Tx) GetGame(sessionID int64) (*domain.GameInstance, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT id, kind, snapshot, updated_at FROM game_instances WHERE session_id = ?`, sessionID)
	var (
		g         = domain.GameInstance{SessionID: sessionID}
		kind      string
		updatedAt int64
	)
	if err := row.Scan(&g.ID, &kind, &g.Snapshot, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	g.Kind = domain.GameKind(kind)
	g.UpdatedAt = fromMillis(updatedAt)
	return &g, nil
}

// PutGame inserts the session's game instance or replaces its snapshot.
func (t *Tx) PutGame(g domain.GameInstance) error {
	_, err := t.tx.ExecContext(t.ctx, `
INSERT INTO game_instances(id, session_id, kind, snapshot, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
    snapshot = excluded.snapshot,
    updated_at = excluded.updated_at
`, g.ID, g.SessionID, string(g.Kind), g.Snapshot, millis(g.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put game: %w", err)
	}
	return nil
}
