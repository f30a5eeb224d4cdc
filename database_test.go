package main

import (
	"encoding/json"
	"slices"
	"testing"
	"time"
)

func TestJournalRecordsEvents(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()
	ctx.logger.Debug("=== Test: journal records events ===")

	j := ctx.journal
	start := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	events := []Event{
		{Kind: EventGameStarted, GameID: "g1", CaseID: clockTowerCaseID, Phase: PhaseDiscussion, CluePhase: 1, MaxRounds: 25, Time: start},
		{Kind: EventMessageAppended, GameID: "g1", Speaker: "system", Content: "Reia has been found dead.", MessageKind: KindSystem, Time: start},
		{Kind: EventMessageAppended, GameID: "g1", Round: 1, Speaker: "hanna", Content: "I was looking for Reia.", MessageKind: KindNPC, Time: start.Add(time.Second)},
		{Kind: EventMessageAppended, GameID: "g1", Round: 2, Speaker: "emma", Content: "Where?", MessageKind: KindPlayer, Time: start.Add(2 * time.Second)},
		{Kind: EventPlotProgress, GameID: "g1", CluePhase: 1, Completed: []int{1, 2}},
		{Kind: EventPlotProgress, GameID: "g1", CluePhase: 1, Completed: []int{1, 2, 5}},
		{Kind: EventCluePhaseAdvanced, GameID: "g1", CluePhase: 2, MaxRounds: 30},
		{Kind: EventPhaseChanged, GameID: "g1", Phase: PhaseVoting},
		{Kind: EventMessageAppended, GameID: "g1", Speaker: "hanna", Target: "noah", Reason: "the view", MessageKind: KindVote},
		{Kind: EventMessageAppended, GameID: "g1", Speaker: "emma", Target: "noah", Reason: "intuition", MessageKind: KindPlayer},
		{Kind: EventPhaseChanged, GameID: "g1", Phase: PhaseEnded},
		{Kind: EventGameEnded, GameID: "g1", Result: &GameResult{VoteResult: VoteResult{TopSuspects: []string{"noah"}, IsCorrect: true}}},
	}
	for _, e := range events {
		j.Emit(e)
	}
	ctx.logger.LogDB("after events")

	g, err := j.loadGame("g1")
	if err != nil {
		t.Fatalf("loadGame: %v", err)
	}
	if g.Status != string(PhaseEnded) || g.CluePhase != 2 || g.MaxRounds != 30 || g.CaseID != clockTowerCaseID {
		t.Errorf("game = %+v", g)
	}
	if !g.StartedAt.Equal(start) {
		t.Errorf("started at %v, want %v", g.StartedAt, start)
	}

	msgs, err := j.loadTranscript("g1")
	if err != nil {
		t.Fatalf("loadTranscript: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Speaker != "hanna" || msgs[1].Speaker != "emma" {
		t.Errorf("transcript = %+v", msgs)
	}

	ids, err := j.loadCompleted("g1", 1)
	if err != nil || !slices.Equal(ids, []int{1, 2, 5}) {
		t.Errorf("completed = %v, %v", ids, err)
	}

	votes, err := j.loadVotes("g1")
	if err != nil || len(votes) != 2 || votes[0].Voter != "emma" || votes[1].Target != "noah" {
		t.Errorf("votes = %+v, %v", votes, err)
	}

	res, err := j.loadResult("g1")
	if err != nil {
		t.Fatalf("loadResult: %v", err)
	}
	var top []string
	if err := json.Unmarshal([]byte(res.TopSuspects), &top); err != nil || !slices.Equal(top, []string{"noah"}) {
		t.Errorf("top suspects = %s", res.TopSuspects)
	}
	if !res.IsCorrect || res.IsTie {
		t.Errorf("result = %+v", res)
	}
}

// A failing write is logged and never reaches the session.
func TestJournalWriteFailureIsContained(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	j := ctx.journal
	j.Emit(Event{Kind: EventGameStarted, GameID: "g1", CaseID: clockTowerCaseID, Phase: PhaseDiscussion, MaxRounds: 25, Time: time.Now()})
	msg := Event{Kind: EventMessageAppended, GameID: "g1", Round: 1, Speaker: "hanna", Content: "one", MessageKind: KindNPC, Time: time.Now()}
	j.Emit(msg)
	if err := j.record(msg); err == nil {
		t.Error("a duplicate sequence number should be rejected")
	}
	j.Emit(msg)

	msgs, err := j.loadTranscript("g1")
	if err != nil || len(msgs) != 1 {
		t.Errorf("transcript = %d messages, %v", len(msgs), err)
	}
}

func TestJournalUnknownGame(t *testing.T) {
	ctx := newTestContext(t)
	defer ctx.cleanup()

	if _, err := ctx.journal.loadGame("missing"); err == nil {
		t.Error("expected an error for a missing game")
	}
	msgs, err := ctx.journal.loadTranscript("missing")
	if err != nil || len(msgs) != 0 {
		t.Errorf("transcript = %v, %v", msgs, err)
	}
}
