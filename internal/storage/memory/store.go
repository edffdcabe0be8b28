// Package memory keeps authors and books in process memory. It backs
// STORAGE=memory for local runs and the handler tests, and mirrors the
// postgres repositories: same filter semantics, orderings and cascade.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/types"
)

type Store struct {
	mu sync.RWMutex

	authors map[int64]types.Author
	books   map[int64]types.Book

	nextAuthorId int64
	nextBookId   int64
}

func NewStore() *Store {
	return &Store{
		authors: make(map[int64]types.Author),
		books:   make(map[int64]types.Book),
	}
}

func (s *Store) Authors() authors.Repository {
	return &authorRepo{s: s}
}

func (s *Store) Books() books.Repository {
	return &bookRepo{s: s}
}

type authorRepo struct {
	s *Store
}

func (r *authorRepo) GetById(_ context.Context, id int64) (*types.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.authors[id]
	if !ok {
		return nil, nil
	}

	return &a, nil
}

func (r *authorRepo) GetByName(_ context.Context, name string) (*types.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	name = strings.ToLower(strings.TrimSpace(name))

	var found *types.Author
	for _, a := range r.s.authors {
		if strings.ToLower(a.Name) != name {
			continue
		}
		if found == nil || a.Id < found.Id {
			a := a
			found = &a
		}
	}

	return found, nil
}

func (r *authorRepo) Search(_ context.Context, query string) ([]*types.Author, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))

	ret := make([]*types.Author, 0, len(r.s.authors))
	for _, a := range r.s.authors {
		if query != "" && !strings.Contains(strings.ToLower(a.Name), query) {
			continue
		}

		a := a
		ret = append(ret, &a)
	}

	sort.Slice(ret, func(i, j int) bool {
		if ret[i].Name != ret[j].Name {
			return ret[i].Name < ret[j].Name
		}
		return ret[i].Id < ret[j].Id
	})

	return ret, nil
}

func (r *authorRepo) Insert(_ context.Context, author *types.Author) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextAuthorId++
	author.Id = r.s.nextAuthorId
	r.s.authors[author.Id] = *author

	return nil
}

func (r *authorRepo) Update(_ context.Context, author *types.Author) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authors[author.Id]; !ok {
		return false, nil
	}

	r.s.authors[author.Id] = *author
	return true, nil
}

func (r *authorRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authors[id]; !ok {
		return false, nil
	}

	delete(r.s.authors, id)
	for bookId, b := range r.s.books {
		if b.AuthorId == id {
			delete(r.s.books, bookId)
		}
	}

	return true, nil
}

type bookRepo struct {
	s *Store
}

func (r *bookRepo) GetById(_ context.Context, id int64) (*types.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.books[id]
	if !ok {
		return nil, nil
	}

	return &b, nil
}

func (r *bookRepo) GetByAuthorIds(_ context.Context, authorIds ...int64) (map[int64][]*types.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[int64]struct{}, len(authorIds))
	for _, id := range authorIds {
		wanted[id] = struct{}{}
	}

	ret := make(map[int64][]*types.Book)
	for _, b := range r.s.books {
		if _, ok := wanted[b.AuthorId]; !ok {
			continue
		}

		b := b
		ret[b.AuthorId] = append(ret[b.AuthorId], &b)
	}

	for _, bs := range ret {
		sort.Slice(bs, func(i, j int) bool {
			if bs[i].PublicationYear != bs[j].PublicationYear {
				return bs[i].PublicationYear > bs[j].PublicationYear
			}
			if bs[i].Title != bs[j].Title {
				return bs[i].Title < bs[j].Title
			}
			return bs[i].Id < bs[j].Id
		})
	}

	return ret, nil
}

func (r *bookRepo) Search(_ context.Context, f books.Filter) ([]*types.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type row struct {
		book       types.Book
		authorName string
	}

	rows := make([]row, 0, len(r.s.books))
	for _, b := range r.s.books {
		name := r.s.authors[b.AuthorId].Name
		if !matches(f, &b, name) {
			continue
		}

		rows = append(rows, row{book: b, authorName: name})
	}

	ordering := f.Ordering
	if len(ordering) == 0 {
		ordering = books.DefaultOrdering
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range ordering {
			c := compare(o.Field, &rows[i].book, rows[i].authorName, &rows[j].book, rows[j].authorName)
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return rows[i].book.Id < rows[j].book.Id
	})

	ret := make([]*types.Book, 0, len(rows))
	for i := range rows {
		ret = append(ret, &rows[i].book)
	}

	return ret, nil
}

func matches(f books.Filter, b *types.Book, authorName string) bool {
	title := strings.ToLower(b.Title)
	name := strings.ToLower(authorName)

	if f.Title != "" && !strings.Contains(title, strings.ToLower(f.Title)) {
		return false
	}

	if f.AuthorName != "" && !strings.Contains(name, strings.ToLower(f.AuthorName)) {
		return false
	}

	if f.Year != nil && b.PublicationYear != *f.Year {
		return false
	}

	if f.YearGte != nil && b.PublicationYear < *f.YearGte {
		return false
	}

	if f.YearLte != nil && b.PublicationYear > *f.YearLte {
		return false
	}

	for _, term := range f.SearchTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if !strings.Contains(title, term) && !strings.Contains(name, term) {
			return false
		}
	}

	return true
}

func compare(field books.OrderField, a *types.Book, aName string, b *types.Book, bName string) int {
	switch field {
	case books.OrderByTitle:
		return strings.Compare(a.Title, b.Title)
	case books.OrderByAuthorName:
		return strings.Compare(aName, bName)
	case books.OrderByYear:
		switch {
		case a.PublicationYear < b.PublicationYear:
			return -1
		case a.PublicationYear > b.PublicationYear:
			return 1
		}
	}

	return 0
}

func (r *bookRepo) Insert(_ context.Context, book *types.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.authors[book.AuthorId]; !ok {
		return books.ErrUnknownAuthor
	}

	r.s.nextBookId++
	book.Id = r.s.nextBookId
	r.s.books[book.Id] = *book

	return nil
}

func (r *bookRepo) Update(_ context.Context, book *types.Book) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.books[book.Id]; !ok {
		return false, nil
	}

	if _, ok := r.s.authors[book.AuthorId]; !ok {
		return false, books.ErrUnknownAuthor
	}

	r.s.books[book.Id] = *book
	return true, nil
}

func (r *bookRepo) Delete(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.books[id]; !ok {
		return false, nil
	}

	delete(r.s.books, id)
	return true, nil
}
