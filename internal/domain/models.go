package domain

import "time"

// SessionState is the lifecycle state of a chat session.
type SessionState string

const (
	StateWaitingForMembers SessionState = "wait_members"
	StateCollectingPrompts SessionState = "collecting_prompts"
	StateGameRunning       SessionState = "game_running"
)

// GameKind tags the engine stored in a game instance.
type GameKind string

const (
	KindNone   GameKind = ""
	KindRating GameKind = "rating"
	KindDebate GameKind = "debate"
)

func (k GameKind) Valid() bool {
	return k == KindRating || k == KindDebate
}

// Session is one party bound to one group chat.
type Session struct {
	ID        int64
	State     SessionState
	Kind      GameKind
	CreatedAt time.Time
}

type Participant struct {
	ID        int64
	SessionID int64
	Name      string
	Handle    string
	Position  int
}

type Prompt struct {
	ID            string
	SessionID     int64
	ParticipantID int64
	Value         string
}

// CollectionTimer bounds the prompt collection window of a session.
type CollectionTimer struct {
	SessionID int64
	Start     time.Time
	End       time.Time
}

// Running reports whether now lies within [Start, End].
func (t CollectionTimer) Running(now time.Time) bool {
	return !now.Before(t.Start) && !now.After(t.End)
}

// Used reports whether the window has elapsed.
func (t CollectionTimer) Used(now time.Time) bool {
	return now.After(t.End)
}

// GameInstance is the persisted envelope around an engine snapshot.
type GameInstance struct {
	ID        string
	SessionID int64
	Kind      GameKind
	Snapshot  []byte
	UpdatedAt time.Time
}

// Member is the identity pair handed to game engines.
type Member struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
