package main

import "time"

// EventKind names a state change pushed to the presentation layer.
type EventKind string

const (
	EventGameStarted       EventKind = "game-started"
	EventMessageAppended   EventKind = "message-appended"
	EventPhaseChanged      EventKind = "phase-changed"
	EventCluePhaseAdvanced EventKind = "clue-phase-advanced"
	EventPlotProgress      EventKind = "plot-progress"
	EventVotingProgress    EventKind = "voting-progress-updated"
	EventGameEnded         EventKind = "game-ended"
	EventError             EventKind = "error"
)

// Message kinds carried by message-appended events.
const (
	KindNPC    = "npc"
	KindPlayer = "player"
	KindSystem = "system"
	KindVote   = "vote"
)

// Event is a single notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind        EventKind      `json:"event"`
	GameID      string         `json:"game_id"`
	CaseID      string         `json:"case_id,omitempty"`
	Speaker     string         `json:"speaker,omitempty"`
	SpeakerName string         `json:"speaker_name,omitempty"`
	Content     string         `json:"content,omitempty"`
	MessageKind string         `json:"kind,omitempty"`
	Target      string         `json:"target,omitempty"`
	Reason      string         `json:"reason,omitempty"`
	Phase       Phase          `json:"phase,omitempty"`
	CluePhase   int            `json:"clue_phase,omitempty"`
	MaxRounds   int            `json:"max_rounds,omitempty"`
	Round       int            `json:"round"`
	Completed   []int          `json:"completed,omitempty"`
	NextStep    string         `json:"next_step,omitempty"`
	Counts      map[string]int `json:"counts,omitempty"`
	Result      *GameResult    `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Time        time.Time      `json:"time"`
}

// Sink receives events in emission order. Implementations must not call
// back into the session that emitted the event.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// fanOut combines sinks, skipping nils.
func fanOut(sinks ...Sink) Sink {
	var m multiSink
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	return m
}
