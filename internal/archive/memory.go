package archive

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory, newest last
type MemoryStore struct {
	records []*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores a copy of the record
func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	for _, existing := range s.records {
		if existing.ID == record.ID {
			return fmt.Errorf("failed to save record: duplicate id '%s'", record.ID)
		}
	}

	s.records = append(s.records, clone(record))
	return nil
}

// Get retrieves a copy of a record by id
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.ID == id {
			return clone(record), nil
		}
	}
	return nil, ErrNotFound
}

// List returns the most recent records first
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, clone(s.records[i]))
	}
	return out, nil
}

// Search returns records whose room or any transcript message contains the query
func (s *MemoryStore) Search(ctx context.Context, query string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query = strings.ToLower(query)

	var out []*Record
	for i := len(s.records) - 1; i >= 0 && len(out) < DefaultListLimit; i-- {
		record := s.records[i]
		if matches(record, query) {
			out = append(out, clone(record))
		}
	}
	return out, nil
}

// Delete removes a record
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, record := range s.records {
		if record.ID == id {
			s.records = slices.Delete(s.records, i, i+1)
			return nil
		}
	}
	return ErrNotFound
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}

func matches(record *Record, query string) bool {
	if strings.Contains(strings.ToLower(record.Room), query) {
		return true
	}
	for _, entry := range record.Transcript {
		if strings.Contains(strings.ToLower(entry.Message), query) {
			return true
		}
	}
	return false
}

// clone copies the record and its transcript so callers cannot mutate stored state
func clone(record *Record) *Record {
	out := *record
	out.Transcript = slices.Clone(record.Transcript)
	return &out
}
