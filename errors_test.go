package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyOracleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), ErrOracleUnavailable},
		{"server error", errors.New("API returned unexpected status code: 500"), ErrOracleUnavailable},
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), ErrOracleUnavailable},
		{"canceled", context.Canceled, ErrOracleUnavailable},
		{"status 401", errors.New("API returned unexpected status code: 401"), ErrOracleUnauthorized},
		{"bad key", errors.New("Incorrect API key provided: sk-xxxx"), ErrOracleUnauthorized},
		{"gemini key", errors.New("googleapi: Error 400: API key not valid. Please pass a valid API key."), ErrOracleUnauthorized},
		{"already classified", &OracleError{Kind: OracleUnauthorized}, ErrOracleUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyOracleError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classifyOracleError(%v) = %v, want kind of %v", tt.err, got, tt.want)
			}
			var oe *OracleError
			if !errors.As(got, &oe) {
				t.Fatalf("result is not an *OracleError: %T", got)
			}
		})
	}
	if classifyOracleError(nil) != nil {
		t.Error("nil stays nil")
	}
}

func TestOracleErrorKeepsCause(t *testing.T) {
	err := classifyOracleError(fmt.Errorf("call: %w", context.DeadlineExceeded))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("the cause should stay reachable")
	}
	if errors.Is(err, ErrOracleUnauthorized) {
		t.Error("kinds must not match each other")
	}
}

func TestIsUserError(t *testing.T) {
	user := []error{ErrTurnInProgress, ErrWaitingForPlayer, ErrAlreadyVoted, fmt.Errorf("%w: %q", errUnknownCase, "x")}
	for _, err := range user {
		if !isUserError(err) {
			t.Errorf("%v should be a user error", err)
		}
	}
	for _, err := range []error{ErrOracleUnavailable, errors.New("disk full"), ErrConfiguration} {
		if isUserError(err) {
			t.Errorf("%v should not be a user error", err)
		}
	}
}
