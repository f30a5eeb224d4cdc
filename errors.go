package main

import (
	"context"
	"errors"
	"log"
	"strings"
)

// Command-level errors returned to the client as error events.
var (
	ErrNoGame           = errors.New("no game in progress")
	ErrTurnInProgress   = errors.New("a turn is already in progress")
	ErrWrongPhase       = errors.New("action not allowed in the current phase")
	ErrGameEnded        = errors.New("game has ended")
	ErrWaitingForPlayer = errors.New("waiting for the player to speak")
	ErrEmptyMessage     = errors.New("message is empty")
	ErrAlreadyVoted     = errors.New("vote already cast")
	ErrConfiguration    = errors.New("oracle is not configured")
)

// OracleErrorKind separates transport failures from credential failures.
type OracleErrorKind string

const (
	OracleUnavailable  OracleErrorKind = "unavailable"
	OracleUnauthorized OracleErrorKind = "unauthorized"
)

// OracleError is a turn-level failure of the reasoning oracle.
// Two OracleErrors match under errors.Is when their kinds are equal.
type OracleError struct {
	Kind  OracleErrorKind
	Cause error
}

func (e *OracleError) Error() string {
	if e.Cause == nil {
		return "oracle " + string(e.Kind)
	}
	return "oracle " + string(e.Kind) + ": " + e.Cause.Error()
}

func (e *OracleError) Unwrap() error {
	return e.Cause
}

func (e *OracleError) Is(target error) bool {
	t, ok := target.(*OracleError)
	return ok && t.Kind == e.Kind
}

var (
	ErrOracleUnavailable  = &OracleError{Kind: OracleUnavailable}
	ErrOracleUnauthorized = &OracleError{Kind: OracleUnauthorized}
)

var unauthorizedMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"forbidden",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"authentication",
	"permission denied",
	"api key not valid",
	"missing api key",
}

// classifyOracleError maps a provider error onto an OracleError.
// Anything that does not look like a credential problem is a transport failure.
func classifyOracleError(err error) error {
	if err == nil {
		return nil
	}
	var oe *OracleError
	if errors.As(err, &oe) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &OracleError{Kind: OracleUnavailable, Cause: err}
	}
	text := strings.ToLower(err.Error())
	for _, marker := range unauthorizedMarkers {
		if strings.Contains(text, marker) {
			return &OracleError{Kind: OracleUnauthorized, Cause: err}
		}
	}
	return &OracleError{Kind: OracleUnavailable, Cause: err}
}

// logError logs an error with context and dumps the database in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	LogDBState("error: " + context)
}
