package books

import (
	"context"
	"errors"

	"library/internal/types"
)

// ErrUnknownAuthor is returned by writes referencing an author that does not exist
var ErrUnknownAuthor = errors.New("book author does not exist")

type Repository interface {
	GetById(ctx context.Context, id int64) (*types.Book, error)
	// GetByAuthorIds groups books by author, newest first then by title.
	// Authors without books are absent from the map.
	GetByAuthorIds(ctx context.Context, authorIds ...int64) (map[int64][]*types.Book, error)

	Search(ctx context.Context, filter Filter) ([]*types.Book, error)

	Insert(ctx context.Context, book *types.Book) error
	Update(ctx context.Context, book *types.Book) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
