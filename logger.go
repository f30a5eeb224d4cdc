package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AppLogger provides logging utilities for the application
// Used by both the server and tests
type AppLogger struct {
	outputDir      string
	logOracle      bool
	logDB          bool
	logWS          bool
	debug          bool
	oracleLog      *os.File
	dbLog          *os.File
	wsLog          *os.File
	mu             sync.Mutex
	oracleCount    int
	wsMessageCount int
}

// Global application logger (used by server)
var appLogger *AppLogger

// LogConfig holds logging configuration
type LogConfig struct {
	OutputDir string
	LogOracle bool
	LogDB     bool
	LogWS     bool
	Debug     bool
}

// NewAppLogger creates a new application logger
func NewAppLogger(config LogConfig) (*AppLogger, error) {
	al := &AppLogger{
		outputDir: config.OutputDir,
		logOracle: config.LogOracle,
		logDB:     config.LogDB,
		logWS:     config.LogWS,
		debug:     config.Debug,
	}

	if al.outputDir == "" {
		return al, nil // No file logging, just in-memory state
	}

	open := func(enabled bool, name string, dst **os.File) error {
		if !enabled {
			return nil
		}
		f, err := os.OpenFile(filepath.Join(al.outputDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", name, err)
		}
		*dst = f
		return nil
	}
	if err := open(al.logOracle, "oracle.log", &al.oracleLog); err != nil {
		return nil, err
	}
	if err := open(al.logDB, "database.log", &al.dbLog); err != nil {
		al.Close()
		return nil, err
	}
	if err := open(al.logWS, "websocket.log", &al.wsLog); err != nil {
		al.Close()
		return nil, err
	}

	return al, nil
}

// Close closes all open log files
func (al *AppLogger) Close() {
	for _, f := range []*os.File{al.oracleLog, al.dbLog, al.wsLog} {
		if f != nil {
			f.Close()
		}
	}
}

// LogOracle records one prompt/reply exchange with the oracle
func (al *AppLogger) LogOracle(system, user, reply string, callErr error, elapsed time.Duration) {
	if !al.logOracle || al.oracleLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.oracleCount++
	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== ORACLE CALL #%d [%s] %s ==========\n", al.oracleCount, timestamp, elapsed.Round(time.Millisecond))
	fmt.Fprintf(&buf, "\n--- System ---\n%s\n", system)
	fmt.Fprintf(&buf, "\n--- User ---\n%s\n", user)
	if callErr != nil {
		fmt.Fprintf(&buf, "\n--- Error ---\n%v\n", callErr)
	} else {
		fmt.Fprintf(&buf, "\n--- Reply ---\n%s\n", reply)
	}

	al.oracleLog.Write(buf.Bytes())
}

// LogWebSocket logs a WebSocket message
func (al *AppLogger) LogWebSocket(direction, client, message string) {
	if !al.logWS || al.wsLog == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	al.wsMessageCount++
	timestamp := time.Now().Format("15:04:05.000")

	fmt.Fprintf(al.wsLog, "[%s] #%d %s [%s]: %s\n",
		timestamp, al.wsMessageCount, direction, client, message)
}

// LogDB dumps the current journal state
func (al *AppLogger) LogDB(context string) {
	if !al.logDB || al.dbLog == nil || db == nil {
		return
	}

	al.mu.Lock()
	defer al.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n========== DATABASE DUMP [%s] ==========\n", timestamp)
	fmt.Fprintf(&buf, "Context: %s\n\n", context)

	var tables []string
	if err := db.Select(&tables, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name"); err != nil {
		fmt.Fprintf(&buf, "Error getting tables: %v\n", err)
		al.dbLog.Write(buf.Bytes())
		return
	}

	for _, table := range tables {
		fmt.Fprintf(&buf, "--- Table: %s ---\n", table)

		rows, err := db.Queryx("SELECT * FROM " + table)
		if err != nil {
			fmt.Fprintf(&buf, "Error: %v\n\n", err)
			continue
		}

		cols, err := rows.Columns()
		if err != nil {
			fmt.Fprintf(&buf, "Error getting columns: %v\n\n", err)
			rows.Close()
			continue
		}
		fmt.Fprintf(&buf, "Columns: %s\n", strings.Join(cols, " | "))

		rowCount := 0
		for rows.Next() {
			rowCount++
			values, err := rows.SliceScan()
			if err != nil {
				fmt.Fprintf(&buf, "Error scanning row: %v\n", err)
				continue
			}

			var rowStr []string
			for _, v := range values {
				switch val := v.(type) {
				case nil:
					rowStr = append(rowStr, "NULL")
				case []byte:
					rowStr = append(rowStr, string(val))
				default:
					rowStr = append(rowStr, fmt.Sprintf("%v", val))
				}
			}
			fmt.Fprintf(&buf, "Row %d: %s\n", rowCount, strings.Join(rowStr, " | "))
		}
		rows.Close()

		if rowCount == 0 {
			fmt.Fprintf(&buf, "(empty)\n")
		}
		buf.WriteString("\n")
	}

	al.dbLog.Write(buf.Bytes())
}

// Debug logs a debug message if debug mode is enabled
func (al *AppLogger) Debug(context, format string, args ...any) {
	if !al.debug {
		return
	}
	log.Printf("[DEBUG] "+context+": "+format, args...)
}

// IsEnabled returns true if any logging is enabled
func (al *AppLogger) IsEnabled() bool {
	return al.logOracle || al.logDB || al.logWS || al.debug
}

// ============================================================================
// Global helper functions
// ============================================================================

// LogOracleExchange logs an oracle call using the global logger
func LogOracleExchange(system, user, reply string, err error, elapsed time.Duration) {
	if appLogger != nil {
		appLogger.LogOracle(system, user, reply, err, elapsed)
	}
}

// LogWSMessage logs a WebSocket message using the global logger
func LogWSMessage(direction, client, message string) {
	if appLogger != nil {
		appLogger.LogWebSocket(direction, client, message)
	}
}

// LogDBState logs the database state using the global logger
func LogDBState(context string) {
	if appLogger != nil {
		appLogger.LogDB(context)
	}
}

// DebugLog logs a debug message using the global logger
func DebugLog(context, format string, args ...any) {
	if appLogger != nil {
		appLogger.Debug(context, format, args...)
	}
}

// CloseAppLogger closes the global application logger
func CloseAppLogger() {
	if appLogger != nil {
		appLogger.Close()
	}
}
