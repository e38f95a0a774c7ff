// Package docstore describes the hierarchical document store the profile
// gateway writes to. Paths alternate collection and document segments:
// "profiles/<uid>" is a document, "profiles/<uid>/accounts" a collection.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned by Update when the target document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidPath is returned when a path has the wrong number of segments
	// for the operation.
	ErrInvalidPath = errors.New("invalid document path")
)

type sentinel string

// ServerTimestamp is a placeholder value. The store replaces it with its own
// clock at write time.
const ServerTimestamp = sentinel("REQUEST_TIME")

// Snapshot is the result of reading one document. Data holds the raw stored
// values, so backend-native timestamps must be normalized before use.
type Snapshot struct {
	ID     string
	Path   string
	Exists bool
	Data   map[string]any
}

// Store is a hierarchical document store.
type Store interface {
	// Get reads a document. A missing document is not an error: the snapshot
	// is returned with Exists false.
	Get(ctx context.Context, path string) (*Snapshot, error)
	// Set creates or replaces a document.
	Set(ctx context.Context, path string, data map[string]any) error
	// Update merges top-level fields into an existing document.
	Update(ctx context.Context, path string, data map[string]any) error
	// Add creates a document with a generated ID in a collection.
	Add(ctx context.Context, collectionPath string, data map[string]any) (string, error)
	Delete(ctx context.Context, path string) error
	// List reads every document directly under a collection.
	List(ctx context.Context, collectionPath string) ([]*Snapshot, error)
}

// SplitPath breaks a slash separated path into its non-empty segments.
func SplitPath(path string) []string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// JoinPath joins segments with "/", dropping empty segments and stray slashes.
func JoinPath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		parts = append(parts, SplitPath(s)...)
	}
	return strings.Join(parts, "/")
}

// IsDocumentPath reports whether path names a document.
func IsDocumentPath(path string) bool {
	n := len(SplitPath(path))
	return n > 0 && n%2 == 0
}

// IsCollectionPath reports whether path names a collection.
func IsCollectionPath(path string) bool {
	return len(SplitPath(path))%2 == 1
}

// CheckDocumentPath returns ErrInvalidPath unless path names a document.
func CheckDocumentPath(path string) error {
	if !IsDocumentPath(path) {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return nil
}

// CheckCollectionPath returns ErrInvalidPath unless path names a collection.
func CheckCollectionPath(path string) error {
	if !IsCollectionPath(path) {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

// Parent returns the collection containing a document path.
func Parent(path string) string {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return ""
	}
	return strings.Join(segments[:len(segments)-1], "/")
}

// Base returns the last segment of path.
func Base(path string) string {
	segments := SplitPath(path)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
