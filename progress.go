package main

import (
	"context"
	"slices"
)

// Progress is the plot tracker's verdict for one turn. Completed is the
// prospective set after merging; GameState is not touched until the turn commits.
type Progress struct {
	Phase            int
	Completed        []int
	NewlyCompleted   []int
	NextStep         string
	SuggestedSpeaker string
	// PhaseChange is the clue phase to advance to, or 0.
	PhaseChange int
}

// ProgressTracker judges which scripted plot points the discussion has satisfied.
type ProgressTracker struct {
	script *Script
	reg    *Registry
	oracle Oracle
}

func newProgressTracker(script *Script, reg *Registry, oracle Oracle) *ProgressTracker {
	return &ProgressTracker{script: script, reg: reg, oracle: oracle}
}

// Evaluate asks the oracle which pending points of the current phase have
// happened. An oracle failure is returned as an *OracleError.
func (t *ProgressTracker) Evaluate(ctx context.Context, state *GameState) (Progress, error) {
	phase := state.CluePhase
	points := t.script.PlotPointsFor(phase)
	p := Progress{Phase: phase, Completed: state.Completed(phase)}

	if len(points) == 0 {
		return p, nil
	}
	if countKnown(points, p.Completed) < len(points) {
		reply, err := t.oracle.Complete(ctx,
			progressSystemPrompt(t.script, state, points, t.reg),
			progressUserPrompt(state, t.reg))
		if err != nil {
			return Progress{}, classifyOracleError(err)
		}
		parsed := ParseProgressReply(reply, t.reg.All())
		for _, id := range parsed.NewlyCompleted {
			if !slices.ContainsFunc(points, func(pp PlotPoint) bool { return pp.ID == id }) {
				DebugLog("progress", "phase %d has no plot point %d", phase, id)
				continue
			}
			if slices.Contains(p.Completed, id) {
				continue
			}
			p.Completed = append(p.Completed, id)
			p.NewlyCompleted = append(p.NewlyCompleted, id)
		}
		slices.Sort(p.Completed)
		if parsed.SpeakerRule == "tagged" || parsed.SpeakerRule == "labelled" {
			p.SuggestedSpeaker = parsed.SuggestedSpeaker
		}
	}

	if next, ok := firstPending(points, p.Completed); ok {
		p.NextStep = next.Description
		if p.SuggestedSpeaker == "" {
			p.SuggestedSpeaker = next.Speaker
		}
	} else {
		p.SuggestedSpeaker = ""
		if phase < cluePhases {
			p.PhaseChange = phase + 1
		}
	}
	return p, nil
}

func countKnown(points []PlotPoint, completed []int) int {
	n := 0
	for _, pp := range points {
		if slices.Contains(completed, pp.ID) {
			n++
		}
	}
	return n
}

func firstPending(points []PlotPoint, completed []int) (PlotPoint, bool) {
	for _, pp := range points {
		if !slices.Contains(completed, pp.ID) {
			return pp, true
		}
	}
	return PlotPoint{}, false
}
