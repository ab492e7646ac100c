package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// Record is the engine-level representation of a document. Body holds the
// complete JSON document, envelope fields included.
type Record struct {
	Collection models.Collection
	ID         string
	Rev        string
	Type       models.DocType
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Body       []byte
}

// Engine persists raw records. Implementations return common.ErrNotFound,
// common.ErrConflict and common.ErrAlreadyExists unwrapped for the
// conditions below and wrap everything else as common.ErrStorage.
type Engine interface {
	// Insert stores a new record; ErrAlreadyExists if (collection, id) is taken.
	Insert(ctx context.Context, rec Record) error

	// Get returns a record; ErrNotFound if absent.
	Get(ctx context.Context, c models.Collection, id string) (Record, error)

	// List returns every record of a collection ordered by id.
	List(ctx context.Context, c models.Collection) ([]Record, error)

	// Replace overwrites a record if its stored revision equals expectedRev.
	// ErrNotFound if absent, ErrConflict on a revision mismatch.
	Replace(ctx context.Context, rec Record, expectedRev string) error

	// Remove deletes a record under the same revision contract as Replace.
	Remove(ctx context.Context, c models.Collection, id, expectedRev string) error

	// ReplaceCollection atomically swaps the whole content of a collection.
	ReplaceCollection(ctx context.Context, c models.Collection, recs []Record) error

	// Close releases engine resources.
	Close() error
}
