package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
)

// db is the process-wide journal connection, also read by the database dump logger.
var db *sqlx.DB

type GameRecord struct {
	ID        string    `db:"id"`
	CaseID    string    `db:"case_id"`
	Status    string    `db:"status"`
	CluePhase int       `db:"clue_phase"`
	MaxRounds int       `db:"max_rounds"`
	StartedAt time.Time `db:"started_at"`
}

type MessageRecord struct {
	GameID    string    `db:"game_id"`
	Seq       int       `db:"seq"`
	Speaker   string    `db:"speaker"`
	Content   string    `db:"content"`
	Kind      string    `db:"kind"`
	CreatedAt time.Time `db:"created_at"`
}

type VoteRecord struct {
	GameID string `db:"game_id"`
	Voter  string `db:"voter"`
	Target string `db:"target"`
	Reason string `db:"reason"`
}

type ResultRecord struct {
	GameID      string `db:"game_id"`
	TopSuspects string `db:"top_suspects"` // JSON array
	IsTie       bool   `db:"is_tie"`
	IsCorrect   bool   `db:"is_correct"`
}

// Journal persists the event stream of every session. Write failures are
// logged and never interrupt the game.
type Journal struct {
	db *sqlx.DB
}

func newJournal(conn *sqlx.DB) *Journal {
	return &Journal{db: conn}
}

func (j *Journal) Emit(e Event) {
	if err := j.record(e); err != nil {
		logError(fmt.Sprintf("journal %s %s", e.GameID, e.Kind), err)
	}
}

func (j *Journal) record(e Event) error {
	switch e.Kind {
	case EventGameStarted:
		_, err := j.db.NamedExec(`
			INSERT INTO game (id, case_id, status, clue_phase, max_rounds, started_at)
			VALUES (:id, :case_id, :status, :clue_phase, :max_rounds, :started_at)`,
			GameRecord{ID: e.GameID, CaseID: e.CaseID, Status: string(e.Phase), CluePhase: e.CluePhase, MaxRounds: e.MaxRounds, StartedAt: e.Time})
		return err

	case EventMessageAppended:
		if e.Target != "" {
			_, err := j.db.NamedExec(`
				INSERT OR IGNORE INTO game_vote (game_id, voter, target, reason)
				VALUES (:game_id, :voter, :target, :reason)`,
				VoteRecord{GameID: e.GameID, Voter: e.Speaker, Target: e.Target, Reason: e.Reason})
			return err
		}
		if e.MessageKind != KindNPC && e.MessageKind != KindPlayer {
			return nil
		}
		_, err := j.db.NamedExec(`
			INSERT INTO game_message (game_id, seq, speaker, content, kind, created_at)
			VALUES (:game_id, :seq, :speaker, :content, :kind, :created_at)`,
			MessageRecord{GameID: e.GameID, Seq: e.Round, Speaker: e.Speaker, Content: e.Content, Kind: e.MessageKind, CreatedAt: e.Time})
		return err

	case EventPhaseChanged:
		_, err := j.db.Exec(`UPDATE game SET status = ? WHERE id = ?`, string(e.Phase), e.GameID)
		return err

	case EventCluePhaseAdvanced:
		_, err := j.db.Exec(`UPDATE game SET clue_phase = ?, max_rounds = ? WHERE id = ?`, e.CluePhase, e.MaxRounds, e.GameID)
		return err

	case EventPlotProgress:
		tx, err := j.db.Beginx()
		if err != nil {
			return err
		}
		for _, id := range e.Completed {
			if _, err := tx.Exec(`INSERT OR IGNORE INTO game_plot_point (game_id, phase, point_id) VALUES (?, ?, ?)`,
				e.GameID, e.CluePhase, id); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()

	case EventGameEnded:
		if e.Result == nil {
			return nil
		}
		suspects, err := json.Marshal(e.Result.TopSuspects)
		if err != nil {
			return err
		}
		_, err = j.db.NamedExec(`
			INSERT OR REPLACE INTO game_result (game_id, top_suspects, is_tie, is_correct)
			VALUES (:game_id, :top_suspects, :is_tie, :is_correct)`,
			ResultRecord{GameID: e.GameID, TopSuspects: string(suspects), IsTie: e.Result.IsTie, IsCorrect: e.Result.IsCorrect})
		if err == nil {
			LogDBState("game ended " + e.GameID)
		}
		return err
	}
	return nil
}

// loadTranscript returns the journalled discussion of a game in ledger order.
func (j *Journal) loadTranscript(gameID string) ([]Message, error) {
	var rows []MessageRecord
	err := j.db.Select(&rows, `
		SELECT game_id, seq, speaker, content, kind, created_at
		FROM game_message
		WHERE game_id = ?
		ORDER BY seq ASC`, gameID)
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, Message{Speaker: r.Speaker, Content: r.Content, Time: r.CreatedAt})
	}
	return out, nil
}

func (j *Journal) loadGame(gameID string) (GameRecord, error) {
	var g GameRecord
	err := j.db.Get(&g, `SELECT id, case_id, status, clue_phase, max_rounds, started_at FROM game WHERE id = ?`, gameID)
	return g, err
}

func (j *Journal) loadVotes(gameID string) ([]VoteRecord, error) {
	var votes []VoteRecord
	err := j.db.Select(&votes, `SELECT game_id, voter, target, reason FROM game_vote WHERE game_id = ? ORDER BY voter`, gameID)
	return votes, err
}

func (j *Journal) loadCompleted(gameID string, phase int) ([]int, error) {
	var ids []int
	err := j.db.Select(&ids, `SELECT point_id FROM game_plot_point WHERE game_id = ? AND phase = ? ORDER BY point_id`, gameID, phase)
	return ids, err
}

func (j *Journal) loadResult(gameID string) (ResultRecord, error) {
	var r ResultRecord
	err := j.db.Get(&r, `SELECT game_id, top_suspects, is_tie, is_correct FROM game_result WHERE game_id = ?`, gameID)
	return r, err
}

func initDB(conn *sqlx.DB) error {
	schema := `
	PRAGMA journal_mode=WAL;

	CREATE TABLE IF NOT EXISTS game (
		id TEXT PRIMARY KEY,
		case_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'discussion',
		clue_phase INTEGER NOT NULL DEFAULT 1,
		max_rounds INTEGER NOT NULL,
		started_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS game_message (
		game_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, seq)
	);
	CREATE TABLE IF NOT EXISTS game_vote (
		game_id TEXT NOT NULL,
		voter TEXT NOT NULL,
		target TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, voter)
	);
	CREATE TABLE IF NOT EXISTS game_plot_point (
		game_id TEXT NOT NULL,
		phase INTEGER NOT NULL,
		point_id INTEGER NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, phase, point_id)
	);
	CREATE TABLE IF NOT EXISTS game_result (
		game_id TEXT PRIMARY KEY,
		top_suspects TEXT NOT NULL,
		is_tie INTEGER NOT NULL,
		is_correct INTEGER NOT NULL,
		FOREIGN KEY (game_id) REFERENCES game(id)
	);
	CREATE INDEX IF NOT EXISTS idx_game_message_lookup ON game_message(game_id, seq);
	`
	_, err := conn.Exec(schema)
	if err != nil {
		log.Printf("initDB error: %v", err)
		return err
	}
	log.Printf("Database initialized successfully")
	return nil
}
