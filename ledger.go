package main

import (
	"iter"
	"strings"
	"time"
)

// Message is one spoken turn. Messages are never edited after they are appended.
type Message struct {
	Speaker string    `json:"speaker"`
	Content string    `json:"content"`
	Time    time.Time `json:"time"`
}

// Ledger is the append-only transcript of the discussion.
type Ledger struct {
	messages []Message
}

// Append adds a message stamped with now and returns it.
func (l *Ledger) Append(speaker, content string, now time.Time) Message {
	m := Message{Speaker: speaker, Content: content, Time: now}
	l.messages = append(l.messages, m)
	return m
}

func (l *Ledger) Len() int {
	return len(l.messages)
}

// Last returns the most recent message, if any.
func (l *Ledger) Last() (Message, bool) {
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// LastBy returns the most recent message from speaker.
func (l *Ledger) LastBy(speaker string) (Message, bool) {
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Speaker == speaker {
			return l.messages[i], true
		}
	}
	return Message{}, false
}

// Tail returns a copy of at most n trailing messages.
func (l *Ledger) Tail(n int) []Message {
	if n > len(l.messages) {
		n = len(l.messages)
	}
	out := make([]Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

func (l *Ledger) Messages() []Message {
	return l.Tail(len(l.messages))
}

// Lines yields "[Display Name] content" for every message in ledger order.
func (l *Ledger) Lines(reg *Registry) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, m := range l.messages {
			if !yield("[" + reg.Name(m.Speaker) + "] " + m.Content) {
				return
			}
		}
	}
}

// Render joins Lines with newlines. It is the transcript handed to the oracle.
func (l *Ledger) Render(reg *Registry) string {
	var b strings.Builder
	for line := range l.Lines(reg) {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

func (l *Ledger) clone() Ledger {
	return Ledger{messages: l.Messages()}
}
