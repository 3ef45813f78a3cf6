// Package conversation holds the append-only turn log of one interview
// session. Sequence numbers are assigned at append time and never reused,
// so a turn's Seq is a stable identity for everything derived from it.
package conversation

import (
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system" // the interviewer side
)

// Turn is one utterance in the conversation. Phase records which interview
// phase was active when the turn was appended.
type Turn struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Phase     string    `json:"phase,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is a thread-safe append-only turn sequence. The zero value is not
// usable; use NewLog.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
	next  int
}

// NewLog returns an empty conversation log. Sequence numbers start at 1.
func NewLog() *Log {
	return &Log{next: 1}
}

// Restore rebuilds a log from previously persisted turns. Turns must be in
// ascending Seq order; the next sequence continues after the last one.
func Restore(turns []Turn) *Log {
	l := &Log{turns: append([]Turn(nil), turns...), next: 1}
	if n := len(l.turns); n > 0 {
		l.next = l.turns[n-1].Seq + 1
	}
	return l
}

// Append adds a turn and returns it with its assigned sequence number.
func (l *Log) Append(role Role, content, phase string) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := Turn{
		Seq:       l.next,
		Role:      role,
		Content:   content,
		Phase:     phase,
		Timestamp: time.Now().UTC(),
	}
	l.turns = append(l.turns, t)
	l.next++
	return t
}

// RemoveLast drops the most recent turn if it matches seq. Used to undo a
// provisional user turn when the exchange it opened cannot complete. The
// sequence number is not reissued.
func (l *Log) RemoveLast(seq int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.turns)
	if n == 0 || l.turns[n-1].Seq != seq {
		return false
	}
	l.turns = l.turns[:n-1]
	return true
}

// Snapshot returns a copy of all turns in order.
func (l *Log) Snapshot() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Turn(nil), l.turns...)
}

// Window returns a copy of the most recent n turns.
func (l *Log) Window(n int) []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.turns) {
		n = len(l.turns)
	}
	return append([]Turn(nil), l.turns[len(l.turns)-n:]...)
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// LastSeq returns the sequence number of the most recent turn, or 0 when
// the log is empty.
func (l *Log) LastSeq() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.turns) == 0 {
		return 0
	}
	return l.turns[len(l.turns)-1].Seq
}

// Transcript renders turns as "role: content" lines, oldest first. Analyzers
// embed this in their prompts.
func Transcript(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}
