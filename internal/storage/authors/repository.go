package authors

import (
	"context"

	"library/internal/types"
)

// Repository lookups return (nil, nil) when the author does not exist,
// Update and Delete report the same case with false.
type Repository interface {
	GetById(ctx context.Context, id int64) (*types.Author, error)
	// GetByName matches the whole name case-insensitively
	GetByName(ctx context.Context, name string) (*types.Author, error)

	// Search returns authors ordered by name whose name contains query
	Search(ctx context.Context, query string) ([]*types.Author, error)

	Insert(ctx context.Context, author *types.Author) error
	Update(ctx context.Context, author *types.Author) (bool, error)
	// Delete removes the author together with all of their books
	Delete(ctx context.Context, id int64) (bool, error)
}
