package rating

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/maaaruch/tg-party-bot/internal/domain"
)

var (
	alice = domain.Member{ID: 1, Name: "Alice"}
	bob   = domain.Member{ID: 2, Name: "Bob"}
)

func TestSetScore_OverwritesAndTotals(t *testing.T) {
	t.Parallel()
	g := New([]string{"A", "B"}, []domain.Member{alice, bob})

	if !g.SetScore(alice.ID, 5) {
		t.Fatal("expected score to apply")
	}
	if !g.SetScore(bob.ID, 3) {
		t.Fatal("expected score to apply")
	}
	if g.Totals[0] != 8 {
		t.Fatalf("total = %d, want 8", g.Totals[0])
	}

	// correction before advancing replaces, not adds
	g.SetScore(alice.ID, 7)
	if g.Totals[0] != 10 {
		t.Fatalf("total after overwrite = %d, want 10", g.Totals[0])
	}
}

func TestSetScore_IgnoresInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		id    int64
		score int
	}{
		{"above_range", alice.ID, 11},
		{"below_range", alice.ID, -11},
		{"not_member", 99, 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New([]string{"A"}, []domain.Member{alice, bob})
			g.SetScore(bob.ID, 2)
			before, _ := g.Encode()

			if g.SetScore(tt.id, tt.score) {
				t.Fatalf("SetScore(%d, %d) applied", tt.id, tt.score)
			}
			after, _ := g.Encode()
			if string(before) != string(after) {
				t.Fatalf("state changed:\nbefore %s\nafter  %s", before, after)
			}
		})
	}
}

func TestSetScore_Bounds(t *testing.T) {
	t.Parallel()
	g := New([]string{"A"}, []domain.Member{alice, bob})
	if !g.SetScore(alice.ID, MinScore) || !g.SetScore(bob.ID, MaxScore) {
		t.Fatal("bounds must be accepted")
	}
	if g.Totals[0] != 0 {
		t.Fatalf("total = %d, want 0", g.Totals[0])
	}
}

func TestAdvance_CompletesOnLastRound(t *testing.T) {
	t.Parallel()
	prompts := []string{"A", "B", "C", "D"}
	g := New(prompts, []domain.Member{alice})

	for i := 1; i < len(prompts); i++ {
		if err := g.Advance(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if err := g.Advance(); !errors.Is(err, domain.ErrGameComplete) {
		t.Fatalf("expected ErrGameComplete, got %v", err)
	}
	if g.Round != len(prompts) {
		t.Fatalf("round = %d, want %d", g.Round, len(prompts))
	}
	if p, ok := g.CurrentPrompt(); !ok || p != "D" {
		t.Fatalf("CurrentPrompt() = %q, %v", p, ok)
	}
}

func TestCurrentPrompt_NoneWithoutPrompts(t *testing.T) {
	t.Parallel()
	g := New(nil, []domain.Member{alice})
	if _, ok := g.CurrentPrompt(); ok {
		t.Fatal("expected no prompt")
	}
	if g.SetScore(alice.ID, 1) {
		t.Fatal("score applied without a prompt")
	}
}

func TestScenario_TwoPromptsTwoPlayers(t *testing.T) {
	t.Parallel()
	g := New([]string{"A", "B"}, []domain.Member{alice, bob})

	g.SetScore(alice.ID, 5)
	g.SetScore(bob.ID, 3)

	stats, ok := g.RoundStats()
	if !ok || stats.Prompt != "A" || stats.Total != 8 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	wantScores := []ParticipantScore{{Name: "Alice", Score: 5}, {Name: "Bob", Score: 3}}
	if !reflect.DeepEqual(stats.Scores, wantScores) {
		t.Fatalf("scores = %+v, want %+v", stats.Scores, wantScores)
	}

	if err := g.Advance(); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	g.SetScore(alice.ID, -2)
	g.SetScore(bob.ID, -4)

	if err := g.Advance(); !errors.Is(err, domain.ErrGameComplete) {
		t.Fatalf("expected ErrGameComplete, got %v", err)
	}

	want := []PromptTotal{{Prompt: "A", Total: 8}, {Prompt: "B", Total: -6}}
	if got := g.FinalScores(); !reflect.DeepEqual(got, want) {
		t.Fatalf("FinalScores() = %+v, want %+v", got, want)
	}
}

func TestSnapshot_RoundTripRandomOps(t *testing.T) {
	t.Parallel()
	rnd := rand.New(rand.NewPCG(7, 11))
	members := []domain.Member{alice, bob, {ID: 3, Name: "Carol"}}
	g := New([]string{"A", "B", "C"}, members)

	check := func(step int) {
		t.Helper()
		data, err := g.Encode()
		if err != nil {
			t.Fatalf("step %d: encode: %v", step, err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("step %d: decode: %v", step, err)
		}
		if !reflect.DeepEqual(decoded, g) {
			t.Fatalf("step %d: round trip mismatch\n got %+v\nwant %+v", step, decoded, g)
		}
	}

	check(0)
	for step := 1; step <= 20; step++ {
		switch rnd.IntN(4) {
		case 0:
			_ = g.Advance()
		default:
			m := members[rnd.IntN(len(members))]
			g.SetScore(m.ID, rnd.IntN(25)-12)
		}
		check(step)
	}
}

func TestDecode_Rejects(t *testing.T) {
	t.Parallel()
	if _, err := Decode([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed snapshot")
	}
	if _, err := Decode([]byte(`{"prompts":["A"],"scores":[],"totals":[]}`)); err == nil {
		t.Fatal("expected error for inconsistent snapshot")
	}
}
