// Package docstore defines a key-path document store: JSON values addressed
// by slash-separated paths such as "tickets/cs-abcde-12345". Backends live in
// the memory, sqlstore and s3store subpackages.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ticketdesk/internal/common"
)

var (
	// ErrNotFound is returned when no document exists at a path. It matches
	// common.ErrorNotFound.
	ErrNotFound = fmt.Errorf("docstore: %w", common.ErrorNotFound)
	// ErrAlreadyExists is returned by Create when the path is taken.
	ErrAlreadyExists = errors.New("docstore: already exists")
	// ErrInvalidPath is returned for empty or malformed paths.
	ErrInvalidPath = errors.New("docstore: invalid path")
	// ErrNotObject is returned when a merge targets a non-object document.
	ErrNotObject = errors.New("docstore: document is not a JSON object")
)

// Store is implemented by every backend.
//
// Update and UpdateIf perform a shallow merge: top-level keys in fields
// replace the stored ones, other keys are kept. Field values must not be nil.
type Store interface {
	// Get decodes the document at path into dst.
	Get(ctx context.Context, path string, dst any) error
	// Set writes value at path, replacing any existing document.
	Set(ctx context.Context, path string, value any) error
	// Create writes value at path only if nothing is stored there yet.
	Create(ctx context.Context, path string, value any) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, path string, fields map[string]any) error
	// UpdateIf merges fields only while the string field of the stored
	// document equals expected. It reports whether the merge happened and is
	// atomic with respect to concurrent UpdateIf calls on the same path.
	UpdateIf(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error)
	// Remove deletes the document at path. Removing a missing path is not an error.
	Remove(ctx context.Context, path string) error
	// Push stores value under parent with a generated, time-ordered key
	// and returns that key.
	Push(ctx context.Context, parent string, value any) (string, error)
	// List returns the direct children of parent keyed by their last path segment.
	List(ctx context.Context, parent string) (map[string]json.RawMessage, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
