package transcript

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// TimestampLayout is the ISO-8601 layout used for entry timestamps
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatHeader heads the text blob submitted for raw-conversation evaluation
const FormatHeader = "Conversation Transcript:"

// Entry is a single line of the conversation
type Entry struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Observer is called synchronously with the full transcript after every change
type Observer func(entries []Entry)

// Store is an append-only ordered log of conversation entries
type Store struct {
	mu        sync.RWMutex
	entries   []Entry
	observers map[int]Observer
	nextID    int
	now       func() time.Time
}

// NewStore creates an empty transcript store
func NewStore() *Store {
	return &Store{
		observers: make(map[int]Observer),
		now:       time.Now,
	}
}

// Append adds an entry stamped with the current time and notifies observers.
// Duplicates are kept as delivered
func (s *Store) Append(role, message string) Entry {
	s.mu.Lock()
	entry := Entry{
		Role:      role,
		Message:   message,
		Timestamp: s.now().UTC().Format(TimestampLayout),
	}
	s.entries = append(s.entries, entry)
	snapshot, observers := s.snapshotLocked(), s.observersLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
	return entry
}

// Reset clears every entry
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = nil
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, []Entry{})
}

// Replace swaps the whole transcript, used when adopting the backend's copy
func (s *Store) Replace(entries []Entry) {
	s.mu.Lock()
	s.entries = append([]Entry(nil), entries...)
	snapshot, observers := s.snapshotLocked(), s.observersLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
}

// ReplaceIfLonger adopts entries only when they are strictly longer than the local transcript
func (s *Store) ReplaceIfLonger(entries []Entry) bool {
	s.mu.Lock()
	if len(entries) <= len(s.entries) {
		s.mu.Unlock()
		return false
	}
	s.entries = append([]Entry(nil), entries...)
	snapshot, observers := s.snapshotLocked(), s.observersLocked()
	s.mu.Unlock()

	notify(observers, snapshot)
	return true
}

// Snapshot returns a copy of the entries in arrival order
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers an observer and returns a function that removes it
func (s *Store) Subscribe(fn Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.observers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) observersLocked() []Observer {
	out := make([]Observer, 0, len(s.observers))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.observers[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(observers []Observer, entries []Entry) {
	for _, fn := range observers {
		fn(entries)
	}
}

// Format renders entries as the plain-text conversation submitted for evaluation
func Format(entries []Entry) string {
	var b strings.Builder
	b.WriteString(FormatHeader)
	b.WriteString("\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp, e.Role, e.Message)
	}
	return b.String()
}
