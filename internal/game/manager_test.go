package game

import (
	"context"
	"database/sql"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/maaaruch/tg-party-bot/internal/domain"
	"github.com/maaaruch/tg-party-bot/internal/game/debate"
	"github.com/maaaruch/tg-party-bot/internal/game/rating"
	"github.com/maaaruch/tg-party-bot/internal/lobby"
	"github.com/maaaruch/tg-party-bot/internal/storage"
)

const chat int64 = -100

type fixture struct {
	store *storage.Store
	lobby *lobby.Service
	mgr   *Manager
}

func newFixture(t *testing.T, limits Limits) *fixture {
	t.Helper()

	db, err := sql.Open("sqlite3", storage.DSN(filepath.Join(t.TempDir(), "game.db")))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	store := storage.New(db)
	if err := store.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	now := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	// identity shuffle keeps drawn prompts in submission order
	lob := lobby.New(store, 5, time.Minute, lobby.WithClock(now), lobby.WithShuffle(func(int, func(i, j int)) {}))
	mgr := NewManager(store, lob, limits, WithClock(now), WithRand(rand.New(rand.NewPCG(1, 2))))
	return &fixture{store: store, lobby: lob, mgr: mgr}
}

// intake runs a whole collection: members join, each submits its prompts, the window closes.
func (f *fixture) intake(t *testing.T, kind domain.GameKind, prompts map[domain.Member][]string, order []domain.Member) {
	t.Helper()
	ctx := context.Background()
	for _, m := range order {
		if err := f.lobby.Join(ctx, chat, domain.Participant{ID: m.ID, Name: m.Name}); err != nil {
			t.Fatalf("Join: %v", err)
		}
	}
	if _, err := f.lobby.BeginCollection(ctx, chat, kind); err != nil {
		t.Fatalf("BeginCollection: %v", err)
	}
	for _, m := range order {
		for _, p := range prompts[m] {
			if _, err := f.lobby.SubmitPrompt(ctx, m.ID, p); err != nil {
				t.Fatalf("SubmitPrompt: %v", err)
			}
		}
	}
	if err := f.lobby.CloseCollection(ctx, chat); err != nil {
		t.Fatalf("CloseCollection: %v", err)
	}
}

var (
	xena = domain.Member{ID: 1, Name: "X"}
	yuri = domain.Member{ID: 2, Name: "Y"}
	zed  = domain.Member{ID: 3, Name: "Z"}
)

func TestLaunch_NoPromptsDestroysSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 3})
	f.intake(t, domain.KindRating, nil, []domain.Member{xena})

	if _, err := f.mgr.Launch(ctx, chat, domain.KindRating); !errors.Is(err, domain.ErrNoPrompts) {
		t.Fatalf("expected ErrNoPrompts, got %v", err)
	}
	members, err := f.lobby.ListMembers(ctx, chat)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("session survived: members=%v", members)
	}
	// participant is free to join elsewhere
	if err := f.lobby.Join(ctx, chat-1, domain.Participant{ID: xena.ID, Name: xena.Name}); err != nil {
		t.Fatalf("Join after drop: %v", err)
	}
}

func TestNoGame(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 3})

	if _, err := f.mgr.Kind(ctx, chat); !errors.Is(err, domain.ErrNoGame) {
		t.Fatalf("expected ErrNoGame, got %v", err)
	}
	if _, err := f.mgr.AdvanceRating(ctx, chat); !errors.Is(err, domain.ErrNoGame) {
		t.Fatalf("expected ErrNoGame, got %v", err)
	}
	if _, err := f.mgr.CurrentSpeaker(ctx, chat); !errors.Is(err, domain.ErrNoGame) {
		t.Fatalf("expected ErrNoGame, got %v", err)
	}
}

func TestLaunch_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 3})

	if _, err := f.mgr.Launch(ctx, chat, domain.KindRating); !errors.Is(err, domain.ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
	if _, err := f.mgr.Launch(ctx, chat, domain.KindNone); !errors.Is(err, domain.ErrWrongGameKind) {
		t.Fatalf("expected ErrWrongGameKind, got %v", err)
	}

	if err := f.lobby.Join(ctx, chat, domain.Participant{ID: xena.ID, Name: xena.Name}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if _, err := f.lobby.BeginCollection(ctx, chat, domain.KindRating); err != nil {
		t.Fatalf("BeginCollection: %v", err)
	}
	if _, err := f.mgr.Launch(ctx, chat, domain.KindRating); !errors.Is(err, domain.ErrCollectionInProgress) {
		t.Fatalf("expected ErrCollectionInProgress, got %v", err)
	}
	if _, err := f.lobby.SubmitPrompt(ctx, xena.ID, "A"); err != nil {
		t.Fatalf("SubmitPrompt: %v", err)
	}
	if err := f.lobby.CloseCollection(ctx, chat); err != nil {
		t.Fatalf("CloseCollection: %v", err)
	}
	if _, err := f.mgr.Launch(ctx, chat, domain.KindRating); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := f.mgr.Launch(ctx, chat, domain.KindRating); !errors.Is(err, domain.ErrGameAlreadyRunning) {
		t.Fatalf("expected ErrGameAlreadyRunning, got %v", err)
	}
}

func TestLaunch_TruncatesToKindLimit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 2})
	f.intake(t, domain.KindDebate, map[domain.Member][]string{
		xena: {"A", "B"},
		yuri: {"B", "C"},
	}, []domain.Member{xena, yuri})

	launched, err := f.mgr.Launch(ctx, chat, domain.KindDebate)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if launched.Prompts != 2 || launched.First != "" {
		t.Fatalf("unexpected launch: %+v", launched)
	}
	kind, err := f.mgr.Kind(ctx, chat)
	if err != nil || kind != domain.KindDebate {
		t.Fatalf("Kind() = %q, %v", kind, err)
	}
	if _, _, err := f.mgr.CurrentPrompt(ctx, chat); !errors.Is(err, domain.ErrWrongGameKind) {
		t.Fatalf("expected ErrWrongGameKind, got %v", err)
	}
}

func TestRating_Scenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 3})
	f.intake(t, domain.KindRating, map[domain.Member][]string{
		xena: {"A"},
		yuri: {"B"},
	}, []domain.Member{xena, yuri})

	launched, err := f.mgr.Launch(ctx, chat, domain.KindRating)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if launched.First != "A" || launched.Prompts != 2 {
		t.Fatalf("unexpected launch: %+v", launched)
	}

	for _, tc := range []struct {
		user  int64
		score int
		want  bool
	}{
		{xena.ID, 5, true},
		{yuri.ID, 3, true},
		{yuri.ID, 11, false},
		{zed.ID, 4, false},
	} {
		applied, err := f.mgr.RateCurrent(ctx, chat, tc.user, tc.score)
		if err != nil {
			t.Fatalf("RateCurrent: %v", err)
		}
		if applied != tc.want {
			t.Fatalf("RateCurrent(%d, %d) applied=%v, want %v", tc.user, tc.score, applied, tc.want)
		}
	}

	step, err := f.mgr.AdvanceRating(ctx, chat)
	if err != nil {
		t.Fatalf("AdvanceRating: %v", err)
	}
	wantStats := rating.RoundStats{Prompt: "A", Total: 8, Scores: []rating.ParticipantScore{{Name: "X", Score: 5}, {Name: "Y", Score: 3}}}
	if !reflect.DeepEqual(step.Finished, wantStats) || step.Next != "B" {
		t.Fatalf("unexpected step: %+v", step)
	}

	if _, err := f.mgr.RateCurrent(ctx, chat, xena.ID, -6); err != nil {
		t.Fatalf("RateCurrent: %v", err)
	}
	step, err = f.mgr.AdvanceRating(ctx, chat)
	if !errors.Is(err, domain.ErrGameComplete) {
		t.Fatalf("expected ErrGameComplete, got %v", err)
	}
	if step.Finished.Prompt != "B" || step.Finished.Total != -6 {
		t.Fatalf("unexpected last round: %+v", step.Finished)
	}

	totals, err := f.mgr.RatingResult(ctx, chat)
	if err != nil {
		t.Fatalf("RatingResult: %v", err)
	}
	want := []rating.PromptTotal{{Prompt: "A", Total: 8}, {Prompt: "B", Total: -6}}
	if !reflect.DeepEqual(totals, want) {
		t.Fatalf("RatingResult() = %+v, want %+v", totals, want)
	}
}

func TestDebate_Scenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, Limits{RatingMaxPrompts: 10, DebateMaxPrompts: 3})
	f.intake(t, domain.KindDebate, map[domain.Member][]string{
		xena: {"cats", "dogs"},
	}, []domain.Member{xena})

	if _, err := f.mgr.Launch(ctx, chat, domain.KindDebate); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := f.mgr.RateCurrent(ctx, chat, xena.ID, 1); !errors.Is(err, domain.ErrWrongGameKind) {
		t.Fatalf("expected ErrWrongGameKind, got %v", err)
	}
	if phase, _ := f.mgr.DebatePhase(ctx, chat); phase != debate.PhaseGathering {
		t.Fatalf("phase = %q", phase)
	}

	join, err := f.mgr.JoinDebate(ctx, chat, domain.Member{ID: 10, Name: "P1"})
	if err != nil || join.Started {
		t.Fatalf("first JoinDebate: %+v, %v", join, err)
	}
	if _, err := f.mgr.JoinDebate(ctx, chat, domain.Member{ID: 10, Name: "P1"}); !errors.Is(err, domain.ErrAlreadyPlaying) {
		t.Fatalf("expected ErrAlreadyPlaying, got %v", err)
	}
	join, err = f.mgr.JoinDebate(ctx, chat, domain.Member{ID: 11, Name: "P2"})
	if err != nil || !join.Started {
		t.Fatalf("second JoinDebate: %+v, %v", join, err)
	}
	if join.Round.Round != 1 || join.Round.Word != "cats" {
		t.Fatalf("unexpected first round: %+v", join.Round)
	}
	if _, err := f.mgr.JoinDebate(ctx, chat, domain.Member{ID: 12, Name: "P3"}); !errors.Is(err, domain.ErrRosterFull) {
		t.Fatalf("expected ErrRosterFull, got %v", err)
	}
	if phase, _ := f.mgr.DebatePhase(ctx, chat); phase != debate.PhaseReadyForAnswer {
		t.Fatalf("phase = %q", phase)
	}

	first, err := f.mgr.CurrentSpeaker(ctx, chat)
	if err != nil || first.Name != "P1" {
		t.Fatalf("CurrentSpeaker() = %+v, %v", first, err)
	}
	second, err := f.mgr.SwitchSpeaker(ctx, chat)
	if err != nil || second.Name != "P2" || second.Position != first.Position.Opposite() {
		t.Fatalf("SwitchSpeaker() = %+v, %v", second, err)
	}
	if _, err := f.mgr.SwitchSpeaker(ctx, chat); !errors.Is(err, domain.ErrAllPlayersAnswered) {
		t.Fatalf("expected ErrAllPlayersAnswered, got %v", err)
	}

	names, err := f.mgr.IssuePoll(ctx, chat)
	if err != nil || !reflect.DeepEqual(names, []string{"P1", "P2"}) {
		t.Fatalf("IssuePoll() = %v, %v", names, err)
	}
	if err := f.mgr.RecordPoll(ctx, chat, 42); err != nil {
		t.Fatalf("RecordPoll: %v", err)
	}
	if id, ok, err := f.mgr.LastPoll(ctx, chat); err != nil || !ok || id != 42 {
		t.Fatalf("LastPoll() = %d, %v, %v", id, ok, err)
	}
	if phase, _ := f.mgr.DebatePhase(ctx, chat); phase != debate.PhaseReadyForNextWord {
		t.Fatalf("phase = %q", phase)
	}

	next, err := f.mgr.ApplyTallyAndAdvance(ctx, chat, map[string]int{"P1": 2, "P2": 1})
	if err != nil {
		t.Fatalf("ApplyTallyAndAdvance: %v", err)
	}
	if next.Round != 2 || next.Word != "dogs" || next.Positions[0].Position != first.Position.Opposite() {
		t.Fatalf("unexpected second round: %+v", next)
	}
	if info, _ := f.mgr.DebateRoundInfo(ctx, chat); !reflect.DeepEqual(info, next) {
		t.Fatalf("DebateRoundInfo() = %+v, want %+v", info, next)
	}

	if _, err := f.mgr.ApplyTallyAndAdvance(ctx, chat, map[string]int{"P2": 2}); !errors.Is(err, domain.ErrGameComplete) {
		t.Fatalf("expected ErrGameComplete, got %v", err)
	}
	res, err := f.mgr.DebateResult(ctx, chat)
	if err != nil {
		t.Fatalf("DebateResult: %v", err)
	}
	// last round's votes are kept even though the game is over
	want := debate.Result{Players: []debate.PlayerScore{{Name: "P1", Score: 2}, {Name: "P2", Score: 3}}, Winner: "P2"}
	if !reflect.DeepEqual(res, want) {
		t.Fatalf("DebateResult() = %+v, want %+v", res, want)
	}
}
