// Package memory provides an in-process storage backend.
//
// Used as the unit-test double and for ephemeral runs. The anti-join is
// computed application-side as a set difference, which is the required
// fallback for stores without a native anti-join.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ashita-ai/hyoka/internal/model"
	"github.com/ashita-ai/hyoka/internal/storage"
)

// Store keeps traces and scores in memory. Safe for concurrent use.
// It implements storage.Store.
type Store struct {
	mu     sync.Mutex
	closed bool
	events map[string][]model.Event
	order  []string // session ids in first-seen order
	scores map[string][]model.Score
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		events: map[string][]model.Event{},
		scores: map[string][]model.Score{},
	}
}

// AppendEvent records an event, preserving per-session append order.
func (s *Store) AppendEvent(_ context.Context, event model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	if _, ok := s.events[event.SessionID]; !ok {
		s.order = append(s.order, event.SessionID)
	}
	s.events[event.SessionID] = append(s.events[event.SessionID], event)
	return nil
}

// UngradedSessions returns up to limit sessions with no score rows, in
// first-seen order. Events are sorted by timestamp with a stable sort so
// ties keep their append order.
func (s *Store) UngradedSessions(_ context.Context, limit int) ([]storage.SessionTrace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	var sessions []storage.SessionTrace
	for _, id := range s.order {
		if len(sessions) >= limit {
			break
		}
		if _, graded := s.scores[id]; graded {
			continue
		}
		events := make([]model.Event, len(s.events[id]))
		copy(events, s.events[id])
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].Timestamp.Before(events[j].Timestamp)
		})
		sessions = append(sessions, storage.SessionTrace{SessionID: id, Events: events})
	}
	return sessions, nil
}

// InsertScores records all scores for a session at once.
func (s *Store) InsertScores(_ context.Context, sessionID string, scores []model.Score) error {
	if len(scores) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	s.scores[sessionID] = append(s.scores[sessionID], scores...)
	return nil
}

// ScoresBySession returns the recorded scores for a session.
func (s *Store) ScoresBySession(_ context.Context, sessionID string) ([]model.Score, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Score, len(s.scores[sessionID]))
	copy(out, s.scores[sessionID])
	return out, nil
}

// EventsBySession returns the recorded events for a session in append order.
func (s *Store) EventsBySession(_ context.Context, sessionID string) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Event, len(s.events[sessionID]))
	copy(out, s.events[sessionID])
	return out, nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return nil
}

// Close marks the store closed.
func (s *Store) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
