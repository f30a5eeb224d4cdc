package main

import (
	"slices"
	"time"
)

// Phase is the coarse game phase. It only moves forward.
type Phase string

const (
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseEnded      Phase = "ended"
)

var phaseTransitions = map[Phase]Phase{
	PhaseDiscussion: PhaseVoting,
	PhaseVoting:     PhaseEnded,
}

// CanTransitionTo reports whether target directly follows p.
func (p Phase) CanTransitionTo(target Phase) bool {
	next, ok := phaseTransitions[p]
	return ok && next == target
}

// Vote is one character's ballot.
type Vote struct {
	Voter  string `json:"voter"`
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// GameState is the mutable state of one session.
// Round is derived from the ledger so round == len(ledger) always holds.
type GameState struct {
	MaxRounds        int
	Phase            Phase
	CluePhase        int
	Ledger           Ledger
	Votes            map[string]Vote
	WaitingForPlayer bool
	StartedAt        time.Time

	// completed holds satisfied plot point ids per clue phase, sorted ascending
	completed map[int][]int
}

func newGameState(maxRounds int, now time.Time) *GameState {
	return &GameState{
		MaxRounds: maxRounds,
		Phase:     PhaseDiscussion,
		CluePhase: 1,
		Votes:     make(map[string]Vote),
		StartedAt: now,
		completed: make(map[int][]int),
	}
}

func (g *GameState) Round() int {
	return g.Ledger.Len()
}

// AppendMessage adds a discussion message. A player message clears WaitingForPlayer.
func (g *GameState) AppendMessage(speaker, content string, fromPlayer bool, now time.Time) (Message, error) {
	switch g.Phase {
	case PhaseEnded:
		return Message{}, ErrGameEnded
	case PhaseVoting:
		return Message{}, ErrWrongPhase
	}
	m := g.Ledger.Append(speaker, content, now)
	if fromPlayer {
		g.WaitingForPlayer = false
	}
	return m, nil
}

// Transition moves the phase forward by one step.
func (g *GameState) Transition(to Phase) error {
	if g.Phase == PhaseEnded {
		return ErrGameEnded
	}
	if !g.Phase.CanTransitionTo(to) {
		return ErrWrongPhase
	}
	g.Phase = to
	return nil
}

// AdvanceCluePhase raises the clue phase and extends the round ceiling by delta.
// It returns false, changing nothing, unless newPhase is ahead of the current phase.
func (g *GameState) AdvanceCluePhase(newPhase, delta int) bool {
	if g.Phase == PhaseEnded {
		return false
	}
	if newPhase <= g.CluePhase || newPhase > cluePhases {
		return false
	}
	g.CluePhase = newPhase
	if delta > 0 {
		g.MaxRounds += delta
	}
	return true
}

// MergeCompleted unions ids into the completed set of phase and returns a sorted copy.
// Once the game has ended the set is returned unchanged.
func (g *GameState) MergeCompleted(phase int, ids []int) []int {
	set := g.completed[phase]
	if g.Phase == PhaseEnded {
		return slices.Clone(set)
	}
	for _, id := range ids {
		if !slices.Contains(set, id) {
			set = append(set, id)
		}
	}
	slices.Sort(set)
	g.completed[phase] = set
	return slices.Clone(set)
}

func (g *GameState) Completed(phase int) []int {
	return slices.Clone(g.completed[phase])
}

func (g *GameState) IsCompleted(phase, id int) bool {
	return slices.Contains(g.completed[phase], id)
}

// CastVote records one ballot per voter, during the voting phase only.
func (g *GameState) CastVote(v Vote) error {
	if g.Phase != PhaseVoting {
		if g.Phase == PhaseEnded {
			return ErrGameEnded
		}
		return ErrWrongPhase
	}
	if _, ok := g.Votes[v.Voter]; ok {
		return ErrAlreadyVoted
	}
	g.Votes[v.Voter] = v
	return nil
}

// clone copies the state for read-only use outside the session lock.
func (g *GameState) clone() *GameState {
	c := *g
	c.Ledger = g.Ledger.clone()
	c.Votes = make(map[string]Vote, len(g.Votes))
	for k, v := range g.Votes {
		c.Votes[k] = v
	}
	c.completed = make(map[int][]int, len(g.completed))
	for k, v := range g.completed {
		c.completed[k] = slices.Clone(v)
	}
	return &c
}
