package main

import (
	"context"
	"fmt"
	"log"
	"maps"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const silentReply = "(says nothing)"

// SessionOptions tunes a session. Zero values mean script defaults.
type SessionOptions struct {
	MaxRounds       int
	PhaseRoundDelta int
	Deadline        time.Duration
	VotePacing      time.Duration
	Seed            int64
	Now             func() time.Time
}

// GameResult is the verdict plus what the players uncovered.
type GameResult struct {
	VoteResult
	Votes        []Vote            `json:"votes"`
	CluePhase    int               `json:"clue_phase"`
	Location     string            `json:"location"`
	Time         string            `json:"time"`
	Clues        map[string]string `json:"clues"`
	TruthReached bool              `json:"truth_reached"`
	SuspectNames []string          `json:"suspect_names"`
}

// Session is one game. All state changes go through its methods.
type Session struct {
	ID     string
	script *Script
	reg    *Registry
	oracle Oracle
	orch   *Orchestrator
	sink   Sink
	now    func() time.Time
	pacing time.Duration
	// base outlives individual commands; deadline-forced voting runs on it
	base context.Context

	// turnMu is the single-flight guard for oracle-driven work.
	turnMu sync.Mutex
	rng    *rand.Rand // used only while turnMu is held

	mu       sync.Mutex
	voteRng  *rand.Rand // repairs player ballots, used only while mu is held
	state    *GameState
	deadline *time.Timer
	result   *GameResult
}

// NewSession starts a game on script. The oracle must be configured.
func NewSession(base context.Context, script *Script, oracle Oracle, sink Sink, opts SessionOptions) (*Session, error) {
	if oracle == nil {
		return nil, ErrConfiguration
	}
	reg, err := NewRegistry(script.Cast)
	if err != nil {
		return nil, fmt.Errorf("cast: %w", err)
	}
	if opts.MaxRounds > 0 {
		script.MaxRounds = opts.MaxRounds
	}
	if opts.PhaseRoundDelta > 0 {
		script.PhaseRoundDelta = opts.PhaseRoundDelta
	}
	if opts.Deadline > 0 {
		script.Deadline = opts.Deadline
	}
	if err := script.Validate(reg); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if sink == nil {
		sink = fanOut()
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	s := &Session{
		ID:      uuid.NewString(),
		script:  script,
		reg:     reg,
		oracle:  oracle,
		orch:    newOrchestrator(script, reg, oracle, rng),
		sink:    sink,
		now:     opts.Now,
		pacing:  opts.VotePacing,
		base:    base,
		rng:     rng,
		voteRng: rand.New(rand.NewSource(opts.Seed + 1)),
	}
	now := s.now()
	s.state = newGameState(script.MaxRounds, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(Event{Kind: EventGameStarted, CaseID: script.Case.ID, Phase: PhaseDiscussion,
		CluePhase: s.state.CluePhase, MaxRounds: s.state.MaxRounds})
	s.systemMessage(fmt.Sprintf("%s has been found dead. %s", reg.Name(script.Case.Victim), script.Case.PublicInfo))
	if script.Deadline > 0 {
		s.deadline = time.AfterFunc(script.Deadline, s.onDeadline)
	}
	log.Printf("Session %s: started case %s (max rounds %d)", s.ID, script.Case.ID, script.MaxRounds)
	return s, nil
}

// emit stamps and forwards an event. Callers hold s.mu.
func (s *Session) emit(e Event) {
	e.GameID = s.ID
	e.Round = s.state.Round()
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	s.sink.Emit(e)
}

// systemMessage announces something without entering the ledger.
func (s *Session) systemMessage(content string) {
	s.emit(Event{Kind: EventMessageAppended, Speaker: "system", Content: content, MessageKind: KindSystem})
}

func (s *Session) messageEvent(m Message, kind string) {
	s.emit(Event{
		Kind:        EventMessageAppended,
		Speaker:     m.Speaker,
		SpeakerName: s.reg.Name(m.Speaker),
		Content:     m.Content,
		MessageKind: kind,
		Time:        m.Time,
	})
}

// snapshot returns a private copy of the state.
func (s *Session) snapshot() *GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// AdvanceTurn runs one discussion turn: decide, let the chosen character
// speak, then commit. An oracle failure leaves the game untouched.
func (s *Session) AdvanceTurn(ctx context.Context) error {
	if !s.turnMu.TryLock() {
		return ErrTurnInProgress
	}
	defer s.turnMu.Unlock()

	snap := s.snapshot()
	switch {
	case snap.Phase == PhaseEnded:
		return ErrGameEnded
	case snap.Phase != PhaseDiscussion:
		return ErrWrongPhase
	case snap.WaitingForPlayer:
		return ErrWaitingForPlayer
	}

	d, err := s.orch.Decide(ctx, snap, s.now())
	if err != nil {
		return err
	}

	if d.StartVoting {
		if err := s.commitVoting(d, snap.Round()); err != nil {
			return err
		}
		return s.runVoting(ctx)
	}

	cluePhase := snap.CluePhase
	if d.PhaseChange > cluePhase {
		cluePhase = d.PhaseChange
	}
	var reply string
	if d.NextSpeaker != "" && !s.reg.IsPlayer(d.NextSpeaker) {
		reply, err = s.characterSpeak(ctx, snap, d.NextSpeaker, d.Topic, cluePhase)
		if err != nil {
			return err
		}
	}
	return s.commitTurn(d, snap.Round(), reply)
}

// commitTurn applies a decided turn. round guards against state that moved
// while the oracle was consulted.
func (s *Session) commitTurn(d Decision, round int, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseDiscussion {
		return ErrWrongPhase
	}
	if s.state.Round() != round {
		DebugLog("session", "%s: ledger moved from %d to %d during the turn", s.ID, round, s.state.Round())
	}

	s.applyProgress(d.Progress)
	if d.Summary != "" {
		DebugLog("session", "%s host: %s", s.ID, d.Summary)
	}

	switch {
	case d.NextSpeaker == "":
		log.Printf("Session %s: no eligible speaker", s.ID)
	case s.reg.IsPlayer(d.NextSpeaker):
		if last, ok := s.state.Ledger.Last(); ok && s.state.Round() != round && last.Speaker == d.NextSpeaker {
			// the player answered while the host was deciding
			DebugLog("session", "%s: %s already spoke, not waiting", s.ID, d.NextSpeaker)
			break
		}
		s.state.WaitingForPlayer = true
		s.systemMessage(fmt.Sprintf("Everyone turns to %s.", s.reg.Name(d.NextSpeaker)))
	default:
		m, err := s.state.AppendMessage(d.NextSpeaker, reply, false, s.now())
		if err != nil {
			return err
		}
		s.messageEvent(m, KindNPC)
	}

	if s.state.Round() >= s.state.MaxRounds {
		DebugLog("session", "%s reached %d rounds, voting on next turn", s.ID, s.state.MaxRounds)
	}
	return nil
}

// applyProgress merges the tracker verdict and advances the clue phase. Callers hold s.mu.
func (s *Session) applyProgress(p Progress) {
	if p.Phase == 0 {
		return
	}
	if len(p.NewlyCompleted) > 0 {
		completed := s.state.MergeCompleted(p.Phase, p.NewlyCompleted)
		s.emit(Event{Kind: EventPlotProgress, CluePhase: p.Phase, Completed: completed, NextStep: p.NextStep})
	}
	if p.PhaseChange > 0 && s.state.AdvanceCluePhase(p.PhaseChange, s.script.PhaseRoundDelta) {
		log.Printf("Session %s: clue phase %d, max rounds %d", s.ID, s.state.CluePhase, s.state.MaxRounds)
		s.emit(Event{Kind: EventCluePhaseAdvanced, CluePhase: s.state.CluePhase, MaxRounds: s.state.MaxRounds})
	}
}

func (s *Session) commitVoting(d Decision, round int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase != PhaseDiscussion {
		return ErrWrongPhase
	}
	s.applyProgress(d.Progress)
	reason := "The host calls the vote."
	switch d.Forced {
	case forcedByRounds:
		reason = fmt.Sprintf("%d rounds have passed.", round)
	case forcedByDeadline:
		reason = "Time is up."
	}
	return s.startVoting(reason)
}

// startVoting moves to the voting phase. Callers hold s.mu.
func (s *Session) startVoting(reason string) error {
	if err := s.state.Transition(PhaseVoting); err != nil {
		return err
	}
	if s.deadline != nil {
		s.deadline.Stop()
	}
	s.state.WaitingForPlayer = false
	log.Printf("Session %s: voting (%s)", s.ID, reason)
	s.emit(Event{Kind: EventPhaseChanged, Phase: PhaseVoting})
	s.systemMessage(reason + " The discussion is over and the witch vote begins.")
	return nil
}

func (s *Session) onDeadline() {
	s.mu.Lock()
	if s.state.Phase != PhaseDiscussion {
		s.mu.Unlock()
		return
	}
	err := s.startVoting("Time is up.")
	s.mu.Unlock()
	if err != nil {
		return
	}
	go func() {
		s.turnMu.Lock()
		defer s.turnMu.Unlock()
		if err := s.runVoting(s.base); err != nil {
			logError("session deadline voting", err)
		}
	}()
}

func (s *Session) characterSpeak(ctx context.Context, snap *GameState, id, topic string, cluePhase int) (string, error) {
	reply, err := s.oracle.Complete(ctx,
		characterSystemPrompt(s.script, s.reg, id, cluePhase),
		characterUserPrompt(s.script, snap, s.reg, cluePhase, topic))
	if err != nil {
		return "", classifyOracleError(err)
	}
	reply = trimSpeakerPrefix(strings.TrimSpace(reply), s.reg.Name(id), id)
	if reply == "" {
		return silentReply, nil
	}
	return reply, nil
}

// trimSpeakerPrefix drops a leading "[Name]" or "Name:" echoed by the oracle.
func trimSpeakerPrefix(reply string, names ...string) string {
	for _, n := range names {
		for _, p := range []string{"[" + n + "]", "【" + n + "】", n + ":", n + "："} {
			if strings.HasPrefix(reply, p) {
				return strings.TrimSpace(reply[len(p):])
			}
		}
	}
	return reply
}

// PlayerSend appends the player's message to the discussion.
func (s *Session) PlayerSend(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.state.AppendMessage(s.reg.Player().ID, content, true, s.now())
	if err != nil {
		return err
	}
	s.messageEvent(m, KindPlayer)
	return nil
}

// npcVoters are the characters who vote through the oracle.
func (s *Session) npcVoters() []Character {
	var out []Character
	for _, c := range s.reg.NonPlayerCast() {
		if c.ID != s.script.Case.Victim {
			out = append(out, c)
		}
	}
	return out
}

// runVoting collects one ballot per non-player character, in cast order.
// A failed or unreadable ballot becomes a random valid vote.
func (s *Session) runVoting(ctx context.Context) error {
	for i, c := range s.npcVoters() {
		snap := s.snapshot()
		if snap.Phase != PhaseVoting {
			return nil
		}
		if _, ok := snap.Votes[c.ID]; ok {
			continue
		}
		if i > 0 && s.pacing > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.pacing):
			}
		}
		v := s.characterVote(ctx, snap, c.ID)
		s.mu.Lock()
		err := s.castVote(v, KindVote)
		s.mu.Unlock()
		if err != nil {
			logError("runVoting: "+c.ID, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeFinish()
	return nil
}

func (s *Session) characterVote(ctx context.Context, snap *GameState, voter string) Vote {
	v := Vote{Voter: voter}
	if ctx.Err() == nil {
		reply, err := s.oracle.Complete(ctx,
			voteSystemPrompt(s.script, s.reg, voter),
			voteUserPrompt(snap, s.reg))
		if err != nil {
			logError("characterVote: "+voter, classifyOracleError(err))
		} else {
			parsed := ParseVoteReply(reply, validVoteTargets(s.reg, s.script.Case.Victim, voter))
			v.Target, v.Reason = parsed.Target, parsed.Reason
			if parsed.Target == "" {
				DebugLog("voting", "%s: unreadable ballot %q", voter, reply)
			}
		}
	}
	v, repaired := RepairVote(s.reg, s.script.Case.Victim, v, s.rng)
	if repaired {
		DebugLog("voting", "%s: random ballot for %s", voter, v.Target)
	}
	return v
}

// castVote records a ballot and reports progress. Callers hold s.mu.
func (s *Session) castVote(v Vote, kind string) error {
	if err := s.state.CastVote(v); err != nil {
		return err
	}
	s.emit(Event{
		Kind:        EventMessageAppended,
		Speaker:     v.Voter,
		SpeakerName: s.reg.Name(v.Voter),
		Content:     fmt.Sprintf("votes for %s: %s", s.reg.Name(v.Target), v.Reason),
		MessageKind: kind,
		Target:      v.Target,
		Reason:      v.Reason,
	})
	s.emit(Event{Kind: EventVotingProgress, Counts: Tally(s.state.Votes)})
	return nil
}

// SubmitPlayerVote records the player's ballot. An invalid target is replaced
// by a random valid one, as for any other voter.
func (s *Session) SubmitPlayerVote(target, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := Vote{Voter: s.reg.Player().ID, Target: strings.TrimSpace(target), Reason: strings.TrimSpace(reason)}
	if v.Reason == "" {
		v.Reason = defaultVoteReason
	}
	switch s.state.Phase {
	case PhaseEnded:
		return ErrGameEnded
	case PhaseDiscussion:
		return ErrWrongPhase
	}
	v, repaired := RepairVote(s.reg, s.script.Case.Victim, v, s.voteRng)
	if repaired {
		DebugLog("voting", "%s: player ballot for %q replaced by %s", s.ID, target, v.Target)
	}
	if err := s.castVote(v, KindPlayer); err != nil {
		return err
	}
	s.maybeFinish()
	return nil
}

// maybeFinish ends the game once every voter has cast a ballot. Callers hold s.mu.
func (s *Session) maybeFinish() {
	if s.state.Phase != PhaseVoting {
		return
	}
	if _, ok := s.state.Votes[s.reg.Player().ID]; !ok {
		return
	}
	for _, c := range s.npcVoters() {
		if _, ok := s.state.Votes[c.ID]; !ok {
			return
		}
	}
	if err := s.state.Transition(PhaseEnded); err != nil {
		logError("maybeFinish", err)
		return
	}
	s.result = s.buildResult()
	log.Printf("Session %s: ended, top suspects %v, correct=%v", s.ID, s.result.TopSuspects, s.result.IsCorrect)
	s.emit(Event{Kind: EventPhaseChanged, Phase: PhaseEnded})
	s.emit(Event{Kind: EventGameEnded, Result: s.result, Counts: s.result.Counts})
}

func (s *Session) buildResult() *GameResult {
	votes := s.state.Votes
	r := &GameResult{
		VoteResult:   Result(Tally(votes), s.script.Case.Culprit),
		CluePhase:    s.state.CluePhase,
		Location:     s.script.Case.Location,
		Time:         s.script.Case.Time,
		Clues:        maps.Clone(s.script.Case.CluesFor(s.state.CluePhase)),
		TruthReached: s.state.CluePhase >= cluePhases,
	}
	for _, voter := range slices.Sorted(maps.Keys(votes)) {
		r.Votes = append(r.Votes, votes[voter])
	}
	for _, id := range r.TopSuspects {
		r.SuspectNames = append(r.SuspectNames, s.reg.Name(id))
	}
	return r
}

// Close stops the deadline timer.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
	}
}

// Snapshot is the read-only view served to clients.
type Snapshot struct {
	GameID           string         `json:"game_id"`
	CaseID           string         `json:"case_id"`
	Title            string         `json:"title"`
	Victim           string         `json:"victim"`
	Phase            Phase          `json:"phase"`
	CluePhase        int            `json:"clue_phase"`
	Round            int            `json:"round"`
	MaxRounds        int            `json:"max_rounds"`
	WaitingForPlayer bool           `json:"waiting_for_player"`
	Cast             []Character    `json:"cast"`
	Messages         []Message      `json:"messages"`
	Completed        []int          `json:"completed"`
	Counts           map[string]int `json:"counts,omitempty"`
	Result           *GameResult    `json:"result,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		GameID:           s.ID,
		CaseID:           s.script.Case.ID,
		Title:            s.script.Case.Title,
		Victim:           s.script.Case.Victim,
		Phase:            s.state.Phase,
		CluePhase:        s.state.CluePhase,
		Round:            s.state.Round(),
		MaxRounds:        s.state.MaxRounds,
		WaitingForPlayer: s.state.WaitingForPlayer,
		Cast:             s.reg.All(),
		Messages:         s.state.Ledger.Messages(),
		Completed:        s.state.Completed(s.state.CluePhase),
		Result:           s.result,
	}
	if s.state.Phase != PhaseDiscussion {
		snap.Counts = Tally(s.state.Votes)
	}
	return snap
}

// SessionStore tracks the current game. Starting a new game replaces it.
type SessionStore struct {
	mu      sync.RWMutex
	current *Session
	byID    map[string]*Session
}

func newSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[string]*Session)}
}

func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.current != nil {
		st.current.Close()
	}
	st.current = s
	st.byID[s.ID] = s
}

func (st *SessionStore) Current() (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.current == nil {
		return nil, ErrNoGame
	}
	return st.current, nil
}

func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.byID[id]
	return s, ok
}
