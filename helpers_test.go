package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

// ============================================================================
// Test logger
// ============================================================================

// TestLogger wraps AppLogger for test use with testing.T integration
type TestLogger struct {
	*AppLogger
	t *testing.T
}

// NewTestLogger creates a test logger from environment variables
func NewTestLogger(t *testing.T) *TestLogger {
	al := &AppLogger{
		logDB: os.Getenv("TEST_LOG_DB") == "1",
		debug: os.Getenv("TEST_DEBUG") == "1",
	}
	if al.logDB {
		if path := os.Getenv("TEST_DB_LOG"); path != "" {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err == nil {
				al.dbLog = f
			}
		}
	}
	return &TestLogger{AppLogger: al, t: t}
}

// Debug logs a debug message using testing.T.Logf
func (tl *TestLogger) Debug(format string, args ...any) {
	if !tl.debug {
		return
	}
	tl.t.Logf("[DEBUG] "+format, args...)
}

// ============================================================================
// Test context
// ============================================================================

// TestContext holds the journal database and logger of one test
type TestContext struct {
	t       *testing.T
	logger  *TestLogger
	journal *Journal
	cleanup func()
}

// newTestContext opens a private in-memory journal
func newTestContext(t *testing.T) *TestContext {
	logger := NewTestLogger(t)
	appLogger = logger.AppLogger

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := initDB(conn); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	db = conn
	logger.LogDB("after initDB")

	return &TestContext{
		t:       t,
		logger:  logger,
		journal: newJournal(conn),
		cleanup: func() {
			logger.LogDB("before cleanup")
			conn.Close()
			logger.Close()
			db = nil
			appLogger = nil
		},
	}
}

// ============================================================================
// Scripted oracle
// ============================================================================

type oracleCall struct {
	kind   string
	system string
	user   string
}

// Call kinds, recognised from the system prompt
const (
	callProgress = "progress"
	callHost     = "host"
	callSpeech   = "speech"
	callVote     = "vote"
)

func classifyCall(system string) string {
	switch {
	case strings.HasPrefix(system, "You are the plot judge"):
		return callProgress
	case strings.HasPrefix(system, "You are the host"):
		return callHost
	case strings.Contains(system, "the witch vote begins"):
		return callVote
	default:
		return callSpeech
	}
}

// scriptedOracle answers each kind of call from a queue, falling back to a
// fixed reply once the queue is empty.
type scriptedOracle struct {
	mu       sync.Mutex
	queues   map[string][]string
	fallback map[string]string
	errs     map[string]error
	calls    []oracleCall
	// block, when set, holds host calls until it is closed
	block chan struct{}
}

func newScriptedOracle() *scriptedOracle {
	return &scriptedOracle{
		queues: make(map[string][]string),
		fallback: map[string]string{
			callProgress: "[NEWLY COMPLETED] none\n[NEXT STEP] none",
			callHost:     "The discussion continues.\n[NEXT SPEAKER] margo\n[TOPIC] alibis",
			callSpeech:   "I was somewhere else, I swear.",
			callVote:     "[VOTE] noah\n[REASON] She was in the art room.",
		},
		errs: make(map[string]error),
	}
}

func (o *scriptedOracle) push(kind string, replies ...string) *scriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queues[kind] = append(o.queues[kind], replies...)
	return o
}

func (o *scriptedOracle) fail(kind string, err error) *scriptedOracle {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs[kind] = err
	return o
}

func (o *scriptedOracle) Complete(ctx context.Context, system, user string) (string, error) {
	kind := classifyCall(system)
	o.mu.Lock()
	o.calls = append(o.calls, oracleCall{kind: kind, system: system, user: user})
	block := o.block
	o.mu.Unlock()

	if block != nil && kind == callHost {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.errs[kind]; err != nil {
		return "", err
	}
	if q := o.queues[kind]; len(q) > 0 {
		o.queues[kind] = q[1:]
		return q[0], nil
	}
	return o.fallback[kind], nil
}

func (o *scriptedOracle) callsOf(kind string) []oracleCall {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []oracleCall
	for _, c := range o.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ============================================================================
// Sinks and sessions
// ============================================================================

// recordingSink keeps every event in emission order
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recordingSink) ofKind(kind EventKind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestSession starts the clock tower case with no vote pacing and a fixed seed
func newTestSession(t *testing.T, oracle Oracle, sink Sink, opts SessionOptions) *Session {
	t.Helper()
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	s, err := NewSession(context.Background(), clockTowerScript(), oracle, sink, opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

// testRegistry is the clock tower cast
func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(witchTrialCast())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// ledgerOf builds a state whose ledger holds one message per speaker
func ledgerOf(speakers ...string) *GameState {
	st := newGameState(25, time.Time{})
	for i, sp := range speakers {
		st.Ledger.Append(sp, fmt.Sprintf("line %d", i), time.Time{})
	}
	return st
}
