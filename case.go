package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// Number of narrative clue phases in every case script.
const cluePhases = 3

// Case is the static mystery a session is played on.
type Case struct {
	ID             string
	Title          string
	Victim         string
	Culprit        string
	Location       string
	Time           string
	PublicInfo     string
	MisleadingInfo string // shown to speaking characters only
	FullTruth      string // never placed in a per-turn prompt
	Clues          [cluePhases]map[string]string
	HiddenTasks    map[string]string
}

// CluesFor returns the clue set of a phase, clamped to 1..3.
func (c *Case) CluesFor(phase int) map[string]string {
	return c.Clues[clampPhase(phase)-1]
}

// PlotPoint is a scripted beat that must surface before a phase can advance.
type PlotPoint struct {
	ID          int    `json:"id"`
	Speaker     string `json:"speaker"`
	Description string `json:"description"`
}

// Script bundles a case with its cast, plot points and pacing constants.
type Script struct {
	Case       Case
	Cast       []Character
	PlotPoints [cluePhases][]PlotPoint
	// Breakers maps a stalemated speaker to the character who must speak next.
	Breakers map[string]string
	// BarredOpener may not open the discussion at round 0.
	BarredOpener    string
	MaxRounds       int
	PhaseRoundDelta int
	Deadline        time.Duration
}

func (s *Script) PlotPointsFor(phase int) []PlotPoint {
	return s.PlotPoints[clampPhase(phase)-1]
}

// Validate checks the script against its own cast.
func (s *Script) Validate(reg *Registry) error {
	c := &s.Case
	victim, ok := reg.Get(c.Victim)
	if !ok {
		return fmt.Errorf("case %s: unknown victim %q", c.ID, c.Victim)
	}
	if victim.IsPlayer {
		return fmt.Errorf("case %s: victim cannot be the player", c.ID)
	}
	culprit, ok := reg.Get(c.Culprit)
	if !ok {
		return fmt.Errorf("case %s: unknown culprit %q", c.ID, c.Culprit)
	}
	if culprit.IsPlayer {
		return fmt.Errorf("case %s: culprit cannot be the player", c.ID)
	}
	if c.Victim == c.Culprit {
		return fmt.Errorf("case %s: victim and culprit are both %q", c.ID, c.Victim)
	}
	if s.MaxRounds <= 0 {
		return fmt.Errorf("case %s: max rounds must be positive", c.ID)
	}
	if s.PhaseRoundDelta < 0 {
		return fmt.Errorf("case %s: phase round delta must not be negative", c.ID)
	}
	if s.BarredOpener != "" {
		if _, ok := reg.Get(s.BarredOpener); !ok {
			return fmt.Errorf("case %s: unknown barred opener %q", c.ID, s.BarredOpener)
		}
	}
	for phase := 1; phase <= cluePhases; phase++ {
		seen := make(map[int]bool)
		for _, p := range s.PlotPointsFor(phase) {
			if seen[p.ID] {
				return fmt.Errorf("case %s: phase %d repeats plot point %d", c.ID, phase, p.ID)
			}
			seen[p.ID] = true
			if _, ok := reg.Get(p.Speaker); !ok {
				return fmt.Errorf("case %s: plot point %d.%d names unknown speaker %q", c.ID, phase, p.ID, p.Speaker)
			}
		}
	}
	for from, to := range s.Breakers {
		if err := validateBreaker(reg, c.Victim, from, to); err != nil {
			return fmt.Errorf("case %s: %w", c.ID, err)
		}
	}
	return nil
}

func validateBreaker(reg *Registry, victim, from, to string) error {
	for _, id := range []string{from, to} {
		ch, ok := reg.Get(id)
		if !ok {
			return fmt.Errorf("breaker %s -> %s: unknown character %q", from, to, id)
		}
		if ch.IsPlayer || id == victim {
			return fmt.Errorf("breaker %s -> %s: %q cannot take part in discussion breaks", from, to, id)
		}
	}
	if from == to {
		return fmt.Errorf("breaker %s maps to itself", from)
	}
	return nil
}

func clampPhase(phase int) int {
	if phase < 1 {
		return 1
	}
	if phase > cluePhases {
		return cluePhases
	}
	return phase
}

// scriptFactories holds the built-in cases by id.
var scriptFactories = map[string]func() *Script{
	clockTowerCaseID: clockTowerScript,
}

var errUnknownCase = errors.New("unknown case")

// lookupScript builds a fresh script for the given case id.
// An empty id picks a random built-in case.
func lookupScript(id string, rng *rand.Rand) (*Script, error) {
	if id == "" {
		ids := make([]string, 0, len(scriptFactories))
		for k := range scriptFactories {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		id = ids[rng.Intn(len(ids))]
	}
	factory, ok := scriptFactories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownCase, id)
	}
	return factory(), nil
}
