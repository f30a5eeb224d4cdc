package main

import (
	"slices"
	"testing"
	"testing/quick"
	"time"
)

func TestRoundTracksLedgerLength(t *testing.T) {
	f := func(speakers []uint8) bool {
		st := newGameState(25, time.Time{})
		for i, sp := range speakers {
			if _, err := st.AppendMessage(string(rune('a'+sp%8)), "x", false, time.Time{}); err != nil {
				t.Errorf("append %d: %v", i, err)
				return false
			}
			if st.Round() != i+1 || st.Round() != st.Ledger.Len() {
				t.Errorf("after %d appends round=%d len=%d", i+1, st.Round(), st.Ledger.Len())
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestLedgerRender(t *testing.T) {
	reg := testRegistry(t)
	var l Ledger
	l.Append("hanna", "I was looking for Reia.", time.Time{})
	l.Append("emma", "Where exactly?", time.Time{})
	l.Append("ghost", "boo", time.Time{})

	want := "[Hanna Toono] I was looking for Reia.\n[Emma Sakuraba] Where exactly?\n[ghost] boo"
	if got := l.Render(reg); got != want {
		t.Errorf("Render:\n got %q\nwant %q", got, want)
	}

	var lines []string
	for line := range l.Lines(reg) {
		lines = append(lines, line)
		if len(lines) == 2 {
			break
		}
	}
	if len(lines) != 2 {
		t.Errorf("Lines should stop when the consumer does, got %d lines", len(lines))
	}
}

func TestLedgerLookups(t *testing.T) {
	var l Ledger
	if _, ok := l.Last(); ok {
		t.Error("empty ledger has no last message")
	}
	l.Append("hanna", "one", time.Time{})
	l.Append("emma", "two", time.Time{})
	l.Append("coco", "three", time.Time{})

	if m, _ := l.Last(); m.Speaker != "coco" {
		t.Errorf("Last speaker = %s, want coco", m.Speaker)
	}
	if m, ok := l.LastBy("emma"); !ok || m.Content != "two" {
		t.Errorf("LastBy(emma) = %+v, %v", m, ok)
	}
	if got := l.Tail(10); len(got) != 3 {
		t.Errorf("Tail(10) len = %d, want 3", len(got))
	}
	tail := l.Tail(2)
	tail[0].Content = "edited"
	if l.Messages()[1].Content != "two" {
		t.Error("Tail must return a copy")
	}
}

func TestGameStatePhaseOnlyMovesForward(t *testing.T) {
	st := newGameState(25, time.Time{})
	if err := st.Transition(PhaseEnded); err == nil {
		t.Error("discussion -> ended should be rejected")
	}
	if err := st.Transition(PhaseVoting); err != nil {
		t.Fatalf("discussion -> voting: %v", err)
	}
	if err := st.Transition(PhaseDiscussion); err == nil {
		t.Error("voting -> discussion should be rejected")
	}
	if _, err := st.AppendMessage("hanna", "late", false, time.Time{}); err != ErrWrongPhase {
		t.Errorf("append during voting = %v, want ErrWrongPhase", err)
	}
	if err := st.Transition(PhaseEnded); err != nil {
		t.Fatalf("voting -> ended: %v", err)
	}
	if err := st.Transition(PhaseVoting); err != ErrGameEnded {
		t.Errorf("transition after end = %v, want ErrGameEnded", err)
	}
	if got := st.MergeCompleted(1, []int{1}); len(got) != 0 {
		t.Errorf("merge after end = %v, want no change", got)
	}
	if st.AdvanceCluePhase(2, 5) || st.MaxRounds != 25 {
		t.Error("clue phase advanced after end")
	}
}

func TestCluePhaseIsMonotonic(t *testing.T) {
	f := func(steps []int8) bool {
		st := newGameState(25, time.Time{})
		for _, s := range steps {
			prevPhase, prevMax := st.CluePhase, st.MaxRounds
			st.AdvanceCluePhase(int(s%5), 5)
			if st.CluePhase < prevPhase || st.CluePhase > cluePhases || st.CluePhase < 1 {
				t.Errorf("clue phase moved from %d to %d", prevPhase, st.CluePhase)
				return false
			}
			if st.MaxRounds < prevMax {
				t.Errorf("max rounds dropped from %d to %d", prevMax, st.MaxRounds)
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestMergeCompletedOnlyGrows(t *testing.T) {
	f := func(batches [][]uint8) bool {
		st := newGameState(25, time.Time{})
		var prev []int
		for _, b := range batches {
			ids := make([]int, len(b))
			for i, v := range b {
				ids[i] = int(v % 8)
			}
			got := st.MergeCompleted(1, ids)
			for _, id := range prev {
				if !slices.Contains(got, id) {
					t.Errorf("merge lost %d: %v -> %v", id, prev, got)
					return false
				}
			}
			if !slices.IsSorted(got) {
				t.Errorf("merge not sorted: %v", got)
				return false
			}
			prev = got
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 50}); err != nil {
		t.Error(err)
	}
}

func TestCastVoteOncePerVoter(t *testing.T) {
	st := newGameState(25, time.Time{})
	if err := st.CastVote(Vote{Voter: "hanna", Target: "coco"}); err != ErrWrongPhase {
		t.Errorf("vote during discussion = %v, want ErrWrongPhase", err)
	}
	st.Transition(PhaseVoting)
	if err := st.CastVote(Vote{Voter: "hanna", Target: "coco"}); err != nil {
		t.Fatalf("first vote: %v", err)
	}
	if err := st.CastVote(Vote{Voter: "hanna", Target: "noah"}); err != ErrAlreadyVoted {
		t.Errorf("second vote = %v, want ErrAlreadyVoted", err)
	}
	if st.Votes["hanna"].Target != "coco" {
		t.Error("a vote must never be edited")
	}
}
