package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// server wires sessions to their oracle, journal and clients.
type server struct {
	cfg       AppConfig
	ctx       context.Context
	hub       *Hub
	sessions  *SessionStore
	journal   *Journal
	oracle    Oracle
	oracleErr error

	rngMu sync.Mutex
	rng   *rand.Rand
}

func newServer(ctx context.Context, cfg AppConfig, oracle Oracle, oracleErr error, journal *Journal, hub *Hub) *server {
	return &server{
		cfg:       cfg,
		ctx:       ctx,
		hub:       hub,
		sessions:  newSessionStore(),
		journal:   journal,
		oracle:    oracle,
		oracleErr: oracleErr,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *server) sink() Sink {
	var sinks []Sink
	if s.journal != nil {
		sinks = append(sinks, s.journal)
	}
	if s.hub != nil {
		sinks = append(sinks, s.hub)
	}
	return fanOut(sinks...)
}

// startGame replaces the current session with a fresh one.
func (s *server) startGame(caseID string) (*Session, error) {
	if s.oracle == nil {
		if s.oracleErr != nil {
			return nil, s.oracleErr
		}
		return nil, ErrConfiguration
	}
	if caseID == "" {
		caseID = s.cfg.CaseID
	}
	s.rngMu.Lock()
	script, err := lookupScript(caseID, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return nil, err
	}
	sess, err := NewSession(s.ctx, script, s.oracle, s.sink(), s.cfg.sessionOptions())
	if err != nil {
		return nil, err
	}
	s.sessions.Put(sess)
	return sess, nil
}

func (s *server) advanceTurn(ctx context.Context) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return sess.AdvanceTurn(ctx)
}

func (s *server) playerSend(content string) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return sess.PlayerSend(content)
}

func (s *server) submitVote(target, reason string) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return sess.SubmitPlayerVote(target, reason)
}

// journalState is served for games that are no longer held in memory.
type journalState struct {
	Game      GameRecord    `json:"game"`
	Messages  []Message     `json:"messages"`
	Votes     []VoteRecord  `json:"votes"`
	Completed []int         `json:"completed"`
	Result    *ResultRecord `json:"result,omitempty"`
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	id := r.URL.Query().Get("game")

	var sess *Session
	if id == "" {
		cur, err := s.sessions.Current()
		if err != nil {
			writeJSONError(w, http.StatusNotFound, err)
			return
		}
		sess = cur
	} else if found, ok := s.sessions.Get(id); ok {
		sess = found
	}
	if sess != nil {
		json.NewEncoder(w).Encode(sess.Snapshot())
		return
	}

	if s.journal == nil {
		writeJSONError(w, http.StatusNotFound, ErrNoGame)
		return
	}
	st, err := s.loadJournalState(id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, ErrNoGame)
		return
	}
	json.NewEncoder(w).Encode(st)
}

func (s *server) loadJournalState(id string) (journalState, error) {
	var st journalState
	var err error
	if st.Game, err = s.journal.loadGame(id); err != nil {
		return st, err
	}
	if st.Messages, err = s.journal.loadTranscript(id); err != nil {
		return st, err
	}
	if st.Votes, err = s.journal.loadVotes(id); err != nil {
		return st, err
	}
	if st.Completed, err = s.journal.loadCompleted(id, st.Game.CluePhase); err != nil {
		return st, err
	}
	if res, err := s.journal.loadResult(id); err == nil {
		st.Result = &res
	}
	return st, nil
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{
		"ok":     true,
		"oracle": s.oracle != nil,
	}
	if s.hub != nil {
		status["clients"] = s.hub.clientCount()
	}
	if s.oracleErr != nil {
		status["oracle_error"] = s.oracleErr.Error()
	}
	json.NewEncoder(w).Encode(status)
}

func writeJSONError(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	// Wrap handlers with compression and caching control
	wrapHandler := func(pattern string, handler http.HandlerFunc) {
		var h http.Handler = handler
		h = compress(h)
		h = disableCaching(h)
		mux.Handle(pattern, h)
	}

	// WebSocket upgrades need http.Hijacker, which the compressing writer hides
	mux.HandleFunc("/ws", s.handleWebSocket)
	wrapHandler("/state", s.handleState)
	wrapHandler("/healthz", s.handleHealthz)
	return mux
}

func disableCaching(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Cache-Control", "no-cache")

		next.ServeHTTP(w, r)
	})
}

// shouldCompress determines if a content type should be gzip compressed
// Compresses text-based formats but not binary formats like images
func shouldCompress(contentType string) bool {
	compressiblePrefixes := []string{
		"text/",
		"application/json",
		"application/javascript",
		"image/svg",
	}
	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(contentType, prefix) {
			return true
		}
	}
	return false
}

// responseWriter wraps http.ResponseWriter to handle conditional gzip compression
type responseWriter struct {
	http.ResponseWriter
	gz            *gzip.Writer
	wrappedWriter http.ResponseWriter
	headerSent    bool
	acceptGzip    bool
}

// WriteHeader checks content type and sets up compression if appropriate
func (w *responseWriter) WriteHeader(statusCode int) {
	if w.headerSent {
		return
	}
	w.headerSent = true

	contentType := w.Header().Get("Content-Type")

	// Only compress if content type is compressible and client supports gzip
	if contentType != "" && shouldCompress(contentType) && w.acceptGzip {
		w.gz = gzip.NewWriter(w.wrappedWriter)
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Del("Content-Length")
	}

	w.ResponseWriter.WriteHeader(statusCode)
}

// Write writes to gzip writer if it exists, otherwise to original writer
func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.headerSent {
		w.WriteHeader(http.StatusOK)
	}

	if w.gz != nil {
		return w.gz.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// Flush flushes both gzip and response writer
func (w *responseWriter) Flush() {
	if w.gz != nil {
		w.gz.Flush()
	}
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Close closes the gzip writer if it exists
func (w *responseWriter) Close() error {
	if w.gz != nil {
		return w.gz.Close()
	}
	return nil
}

// compress adds gzip compression to compressible responses
func compress(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{
			ResponseWriter: w,
			wrappedWriter:  w,
			acceptGzip:     strings.Contains(r.Header.Get("Accept-Encoding"), "gzip"),
		}
		defer wrapped.Close()

		next.ServeHTTP(wrapped, r)
	})
}

func main() {
	fs := flag.CommandLine
	fv := registerFlags(fs)
	flag.Parse()

	cfg := loadConfig(*fv.configPath)
	fv.applyTo(fs, &cfg)

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("witchtrial.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	logger, err := NewAppLogger(cfg.toLogConfig())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	appLogger = logger
	defer CloseAppLogger()

	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err = sqlx.Connect("sqlite3", cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := initDB(db); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	LogDBState("after initDB")

	oracle, oracleErr := newOracle(cfg)
	if oracleErr != nil {
		log.Printf("Oracle: %v (games cannot start until it is configured)", oracleErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := newHub()
	go hub.run()
	defer hub.stop()

	srv := newServer(ctx, cfg, oracle, oracleErr, newJournal(db), hub)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: srv.routes()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
