package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"library/internal/serializer"
	"library/internal/storage/authors"
	"library/internal/storage/books"
	"library/internal/types"
)

type Consumer interface {
	ConsumeEntries(ctx context.Context, entries []*Entry) (Stats, error)
}

// LoggerConsumer only reports what would be imported
type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeEntries(_ context.Context, entries []*Entry) (Stats, error) {
	for _, e := range entries {
		by := "without author"
		if e.AuthorName != "" {
			by = "by " + e.AuthorName
		}

		year := "unknown year"
		if e.Year != 0 {
			year = fmt.Sprintf("%d", e.Year)
		}

		c.Logger.Info("Consumed entry " + e.Id + " (" + e.Title + ", " + year + ") " + by)
	}

	return Stats{}, nil
}

// StoringConsumer saves entries as books, creating authors matched by name.
// Entries failing the API validation rules are skipped.
type StoringConsumer struct {
	Logger  *slog.Logger
	Authors authors.Repository
	Books   books.Repository
	Now     func() time.Time

	byName map[string]*types.Author
}

func (s *StoringConsumer) ConsumeEntries(ctx context.Context, entries []*Entry) (Stats, error) {
	var stats Stats

	if s.byName == nil {
		s.byName = make(map[string]*types.Author)
	}

	for _, e := range entries {
		l := s.Logger.With(slog.String("entry", e.Id))

		if e.AuthorName == "" || e.Year == 0 {
			l.Warn("Skip entry without author or year")
			stats.Skipped++
			continue
		}

		author, err := s.author(ctx, e.AuthorName)
		if err != nil {
			return stats, err
		}

		if author.Id == 0 {
			if err := serializer.NewAuthorInput(author.Name).Validate(); err != nil {
				if !skippable(err, l) {
					return stats, err
				}
				stats.Skipped++
				continue
			}
		}

		in := serializer.NewBookInput(e.Title, e.Year, author.Id)
		if err := in.Validate(ctx, knownAuthor{author}, s.Now()); err != nil {
			if !skippable(err, l) {
				return stats, err
			}
			stats.Skipped++
			continue
		}

		if author.Id == 0 {
			if err := s.Authors.Insert(ctx, author); err != nil {
				return stats, fmt.Errorf("saving new author: %w", err)
			}
			stats.AuthorsCreated++
		}

		var b types.Book
		in.Apply(&b)
		b.AuthorId = author.Id

		if err := s.Books.Insert(ctx, &b); err != nil {
			return stats, fmt.Errorf("saving book: %w", err)
		}
		stats.BooksCreated++

		l.Debug("Imported book " + b.Title)
	}

	return stats, nil
}

// author returns the stored author with that name, or an unsaved one with
// Id 0 which is inserted only once one of its books validates
func (s *StoringConsumer) author(ctx context.Context, name string) (*types.Author, error) {
	key := strings.ToLower(name)
	if a, ok := s.byName[key]; ok {
		return a, nil
	}

	a, err := s.Authors.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("checking existing author: %w", err)
	}

	if a == nil {
		a = &types.Author{Name: strings.TrimSpace(name)}
	}

	s.byName[key] = a
	return a, nil
}

func skippable(err error, l *slog.Logger) bool {
	var fields serializer.Errors
	if !errors.As(err, &fields) {
		return false
	}

	l.Warn("Skip invalid entry: " + fields.Error())
	return true
}

// knownAuthor resolves exactly one author, saved or not yet saved
type knownAuthor struct {
	author *types.Author
}

func (k knownAuthor) GetById(_ context.Context, id int64) (*types.Author, error) {
	if id == k.author.Id {
		return k.author, nil
	}

	return nil, nil
}
