// Package firestore adapts a Cloud Firestore client to docstore.Store.
package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dvloznov/asset-tracker/internal/docstore"
)

// Store implements docstore.Store on top of Firestore.
type Store struct {
	client *firestore.Client
}

// NewStore wraps an existing client. The store takes ownership of it.
func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Open creates a client for the project and wraps it.
func Open(ctx context.Context, projectID string) (*Store, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("Open: creating client: %w", err)
	}
	return NewStore(client), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) doc(path string) (*firestore.DocumentRef, error) {
	if err := docstore.CheckDocumentPath(path); err != nil {
		return nil, err
	}
	ref := s.client.Doc(docstore.JoinPath(path))
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, path)
	}
	return ref, nil
}

func (s *Store) collection(path string) (*firestore.CollectionRef, error) {
	if err := docstore.CheckCollectionPath(path); err != nil {
		return nil, err
	}
	ref := s.client.Collection(docstore.JoinPath(path))
	if ref == nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidPath, path)
	}
	return ref, nil
}

// Get reads one document. NotFound from the backend becomes a snapshot with
// Exists false.
func (s *Store) Get(ctx context.Context, path string) (*docstore.Snapshot, error) {
	ref, err := s.doc(path)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &docstore.Snapshot{ID: ref.ID, Path: docstore.JoinPath(path)}, nil
		}
		return nil, fmt.Errorf("Get: reading %s: %w", path, err)
	}
	return toSnapshot(docstore.JoinPath(path), snap), nil
}

// Set creates or replaces a document.
func (s *Store) Set(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	if _, err := ref.Set(ctx, encodeMap(data)); err != nil {
		return fmt.Errorf("Set: writing %s: %w", path, err)
	}
	return nil
}

// Update merges top-level fields into an existing document.
func (s *Store) Update(ctx context.Context, path string, data map[string]any) error {
	ref, err := s.doc(path)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	updates := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		updates = append(updates, firestore.Update{FieldPath: firestore.FieldPath{k}, Value: encode(v)})
	}

	if _, err := ref.Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("Update: %s: %w", path, errors.Join(docstore.ErrNotFound, err))
		}
		return fmt.Errorf("Update: writing %s: %w", path, err)
	}
	return nil
}

// Add creates a document with a generated ID.
func (s *Store) Add(ctx context.Context, collectionPath string, data map[string]any) (string, error) {
	coll, err := s.collection(collectionPath)
	if err != nil {
		return "", fmt.Errorf("Add: %w", err)
	}
	ref, _, err := coll.Add(ctx, encodeMap(data))
	if err != nil {
		return "", fmt.Errorf("Add: writing to %s: %w", collectionPath, err)
	}
	return ref.ID, nil
}

// Delete removes one document. Subcollections are not removed.
func (s *Store) Delete(ctx context.Context, path string) error {
	ref, err := s.doc(path)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("Delete: %s: %w", path, err)
	}
	return nil
}

// List reads every document in a collection.
func (s *Store) List(ctx context.Context, collectionPath string) ([]*docstore.Snapshot, error) {
	coll, err := s.collection(collectionPath)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	it := coll.Documents(ctx)
	defer it.Stop()

	prefix := docstore.JoinPath(collectionPath)
	var snaps []*docstore.Snapshot
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("List: iterating %s: %w", collectionPath, err)
		}
		snaps = append(snaps, toSnapshot(docstore.JoinPath(prefix, snap.Ref.ID), snap))
	}
	return snaps, nil
}

func toSnapshot(path string, snap *firestore.DocumentSnapshot) *docstore.Snapshot {
	return &docstore.Snapshot{
		ID:     snap.Ref.ID,
		Path:   path,
		Exists: snap.Exists(),
		Data:   snap.Data(),
	}
}

func encodeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = encode(v)
	}
	return out
}

// encode swaps the store-neutral server timestamp placeholder for the
// Firestore one, including inside nested maps.
func encode(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return encodeMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = encode(item)
		}
		return out
	}
	if v == docstore.ServerTimestamp {
		return firestore.ServerTimestamp
	}
	return v
}
