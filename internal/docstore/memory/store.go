// Package memory is an in-process docstore.Store. It keeps timestamps in the
// same wire form the hosted backend returns, so callers exercise the same
// normalization path in tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/dvloznov/asset-tracker/internal/docstore"
)

// Store is a thread-safe in-memory document store.
type Store struct {
	mu     sync.RWMutex
	docs   map[string]map[string]any
	now    func() time.Time
	newID  func() string
	writes int
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to resolve docstore.ServerTimestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator sets the function used to name documents created by Add.
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]map[string]any),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a copy of the document at path.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.CheckDocumentPath(path); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	key := docstore.JoinPath(path)

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &docstore.Snapshot{ID: docstore.Base(key), Path: key}
	if data, ok := s.docs[key]; ok {
		snap.Exists = true
		snap.Data = copyMap(data)
	}
	return snap, nil
}

// Set creates or replaces the document at path.
func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.CheckDocumentPath(path); err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[docstore.JoinPath(path)] = s.encodeMap(data)
	s.writes++
	return nil
}

// Update merges top-level fields into an existing document.
func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.CheckDocumentPath(path); err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	key := docstore.JoinPath(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.docs[key]
	if !ok {
		return fmt.Errorf("Update: %q: %w", key, docstore.ErrNotFound)
	}
	for k, v := range s.encodeMap(data) {
		existing[k] = v
	}
	s.writes++
	return nil
}

// Add stores data under a generated ID in the collection.
func (s *Store) Add(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := docstore.CheckCollectionPath(collectionPath); err != nil {
		return "", fmt.Errorf("Add: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	s.docs[docstore.JoinPath(collectionPath, id)] = s.encodeMap(data)
	s.writes++
	return id, nil
}

// Delete removes the document at path. Deleting a missing document succeeds.
// Subcollections are left in place, as on the hosted backend.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docstore.CheckDocumentPath(path); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, docstore.JoinPath(path))
	s.writes++
	return nil
}

// List returns every document directly under the collection, ordered by ID.
func (s *Store) List(ctx context.Context, collectionPath string) ([]*docstore.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docstore.CheckCollectionPath(collectionPath); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	prefix := docstore.JoinPath(collectionPath) + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	var snaps []*docstore.Snapshot
	for key, data := range s.docs {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		snaps = append(snaps, &docstore.Snapshot{
			ID:     rest,
			Path:   key,
			Exists: true,
			Data:   copyMap(data),
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID < snaps[j].ID })
	return snaps, nil
}

// Writes returns the number of successful mutating calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Store) encodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = s.encode(v)
	}
	return out
}

// encode copies v into its stored form. Timestamps and the server timestamp
// placeholder become protobuf timestamps.
func (s *Store) encode(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return s.encodeMap(val)
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.encodeMap(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.encode(item)
		}
		return out
	case time.Time:
		return timestamppb.New(val)
	case *time.Time:
		if val == nil {
			return nil
		}
		return timestamppb.New(*val)
	case *timestamppb.Timestamp:
		return copyTimestamp(val)
	}
	if v == docstore.ServerTimestamp {
		return timestamppb.New(s.now())
	}
	return v
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case *timestamppb.Timestamp:
		return copyTimestamp(val)
	}
	return v
}

func copyTimestamp(ts *timestamppb.Timestamp) *timestamppb.Timestamp {
	if ts == nil {
		return nil
	}
	return &timestamppb.Timestamp{Seconds: ts.GetSeconds(), Nanos: ts.GetNanos()}
}
