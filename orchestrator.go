package main

import (
	"context"
	"math/rand"
	"time"
)

const (
	stalemateWindow     = 6
	stalemateMinHistory = 4
	stalemateMaxTurns   = 2
)

// Reasons voting may be forced without asking the host.
const (
	forcedByRounds   = "max-rounds"
	forcedByDeadline = "deadline"
)

// Decision is the outcome of one discussion turn.
type Decision struct {
	Summary     string
	NextSpeaker string
	Topic       string
	StartVoting bool
	PhaseChange int
	Progress    Progress
	// Stalemated is the speaker that triggered a forced breaker, if any.
	Stalemated string
	// Fallback is set when the speaker was picked at random.
	Fallback bool
	Forced   string
}

// Orchestrator decides who speaks next.
type Orchestrator struct {
	script  *Script
	reg     *Registry
	oracle  Oracle
	tracker *ProgressTracker
	rng     *rand.Rand
}

func newOrchestrator(script *Script, reg *Registry, oracle Oracle, rng *rand.Rand) *Orchestrator {
	return &Orchestrator{
		script:  script,
		reg:     reg,
		oracle:  oracle,
		tracker: newProgressTracker(script, reg, oracle),
		rng:     rng,
	}
}

// Decide computes the next directive without mutating state.
func (o *Orchestrator) Decide(ctx context.Context, state *GameState, now time.Time) (Decision, error) {
	if state.Phase == PhaseEnded {
		return Decision{}, ErrGameEnded
	}
	if state.Phase != PhaseDiscussion {
		return Decision{}, ErrWrongPhase
	}
	if state.Round() >= state.MaxRounds {
		return Decision{StartVoting: true, Forced: forcedByRounds}, nil
	}
	if o.deadlinePassed(state, now) {
		return Decision{StartVoting: true, Forced: forcedByDeadline}, nil
	}

	progress, err := o.tracker.Evaluate(ctx, state)
	if err != nil {
		return Decision{}, err
	}

	player := o.reg.Player().ID
	hints := hostHints{progress: progress}
	if last, ok := state.Ledger.Last(); ok {
		hints.lastSpeaker = last.Speaker
		if last.Speaker == player {
			hints.playerLast = &last
		} else if m, ok := state.Ledger.LastBy(player); ok {
			hints.playerFocus = &m
		}
	}
	if state.Round() == 0 {
		hints.barredOpener = o.script.BarredOpener
	}
	if s := DetectStalemate(state.Ledger.Messages(), player); s != "" {
		if b, ok := o.script.Breakers[s]; ok && o.eligible(state, b) {
			hints.stalemated, hints.breaker = s, b
		}
	}

	reply, err := o.oracle.Complete(ctx,
		hostSystemPrompt(o.script, state, o.reg, hints),
		hostUserPrompt(o.script, state, o.reg))
	if err != nil {
		return Decision{}, classifyOracleError(err)
	}
	parsed := ParseHostReply(reply, o.speakerCandidates(state))

	d := Decision{
		Summary:     parsed.Summary,
		Topic:       parsed.Topic,
		PhaseChange: progress.PhaseChange,
		Progress:    progress,
	}
	if parsed.StartVoting {
		d.StartVoting = true
		return d, nil
	}

	switch {
	case hints.breaker != "":
		d.NextSpeaker = hints.breaker
		d.Stalemated = hints.stalemated
		if parsed.NextSpeaker != hints.breaker {
			DebugLog("orchestrator", "stalemate on %s, overriding %q with breaker %s", hints.stalemated, parsed.NextSpeaker, hints.breaker)
		}
	case parsed.NextSpeaker != "" && o.eligible(state, parsed.NextSpeaker):
		d.NextSpeaker = parsed.NextSpeaker
	default:
		d.NextSpeaker = o.randomEligible(state)
		d.Fallback = true
		DebugLog("orchestrator", "host picked %q (%s), falling back to %s", parsed.NextSpeaker, parsed.SpeakerRule, d.NextSpeaker)
	}
	return d, nil
}

func (o *Orchestrator) deadlinePassed(state *GameState, now time.Time) bool {
	return o.script.Deadline > 0 && !state.StartedAt.IsZero() && now.Sub(state.StartedAt) >= o.script.Deadline
}

// speakerCandidates is everyone who may take the floor this turn, so a
// reply that mentions the previous speaker cannot resolve to them.
func (o *Orchestrator) speakerCandidates(state *GameState) []Character {
	var out []Character
	for _, c := range o.reg.All() {
		if o.eligible(state, c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// eligible reports whether id may speak next: a known character other than
// the victim, not the previous speaker, and not the barred opener at round 0.
func (o *Orchestrator) eligible(state *GameState, id string) bool {
	if _, ok := o.reg.Get(id); !ok || id == o.script.Case.Victim {
		return false
	}
	if last, ok := state.Ledger.Last(); ok && last.Speaker == id {
		return false
	}
	if state.Round() == 0 && id == o.script.BarredOpener {
		return false
	}
	return true
}

// randomEligible picks uniformly among eligible non-player characters.
func (o *Orchestrator) randomEligible(state *GameState) string {
	var pool []string
	for _, c := range o.reg.NonPlayerCast() {
		if o.eligible(state, c.ID) {
			pool = append(pool, c.ID)
		}
	}
	if len(pool) == 0 {
		return ""
	}
	return pool[o.rng.Intn(len(pool))]
}

// DetectStalemate returns the first non-player speaker, in ledger order, who
// holds more than two of the last six turns. Short histories never stalemate.
func DetectStalemate(messages []Message, playerID string) string {
	if len(messages) < stalemateMinHistory {
		return ""
	}
	window := messages[max(0, len(messages)-stalemateWindow):]
	counts := make(map[string]int)
	for _, m := range window {
		if m.Speaker != playerID {
			counts[m.Speaker]++
		}
	}
	for _, m := range window {
		if counts[m.Speaker] > stalemateMaxTurns {
			return m.Speaker
		}
	}
	return ""
}
