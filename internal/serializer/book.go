package serializer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"library/internal/types"
)

const (
	TitleMaxLength = 200

	msgFutureYearTmpl  = "Publication year cannot be in the future. Current year is %d."
	msgAuthorTypeTmpl  = "Incorrect type. Expected pk value, received %s."
	msgAuthorMissTmpl  = "Invalid pk \"%d\" - object does not exist."
	fieldBookTitle     = "title"
	fieldBookYear      = "publication_year"
	fieldBookAuthor    = "author"
	fieldReadOnlyId    = "id"
	fieldReadOnlyBooks = "books"
	fieldReadOnlyCount = "books_count"
)

// AuthorLookup resolves the author a book refers to, (nil, nil) when absent
type AuthorLookup interface {
	GetById(ctx context.Context, id int64) (*types.Author, error)
}

// BookInput holds the writable book fields supplied by the client.
// A nil field was not supplied (or failed to decode, see Errors).
type BookInput struct {
	Title           *string `json:"title"`
	PublicationYear *int    `json:"publication_year"`
	Author          *int64  `json:"author"`

	partial    bool
	decodeErrs Errors
}

// DecodeBook reads a book payload. With partial set (PATCH) absent fields
// are allowed and keep their stored values.
func DecodeBook(body io.Reader, partial bool) (*BookInput, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	in := &BookInput{partial: partial, decodeErrs: Errors{}}

	for key, val := range raw {
		switch key {
		case fieldBookTitle:
			s, msg := decodeString(val)
			if msg != "" {
				in.decodeErrs.Add(key, msg)
				continue
			}
			in.Title = s
		case fieldBookYear:
			if isNull(val) {
				in.decodeErrs.Add(key, msgNull)
				continue
			}
			v, ok := decodeInt(val)
			if !ok || int64(int(*v)) != *v {
				in.decodeErrs.Add(key, msgNotInteger)
				continue
			}
			year := int(*v)
			in.PublicationYear = &year
		case fieldBookAuthor:
			if isNull(val) {
				in.decodeErrs.Add(key, msgNull)
				continue
			}
			v, ok := decodeInt(val)
			if !ok {
				in.decodeErrs.Add(key, fmt.Sprintf(msgAuthorTypeTmpl, jsonKind(val)))
				continue
			}
			in.Author = v
		case fieldReadOnlyId:
		default:
			in.decodeErrs.Add(key, msgUnknownField)
		}
	}

	return in, nil
}

// NewBookInput builds a full (non-partial) input from already typed values,
// for callers that do not go through a JSON payload
func NewBookInput(title string, year int, author int64) *BookInput {
	title = strings.TrimSpace(title)
	return &BookInput{Title: &title, PublicationYear: &year, Author: &author, decodeErrs: Errors{}}
}

// Validate checks the decoded fields against now and the author store.
// It returns Errors for client mistakes and a wrapped error when the
// lookup itself fails.
func (in *BookInput) Validate(ctx context.Context, authors AuthorLookup, now time.Time) error {
	errs := Errors{}
	for k, v := range in.decodeErrs {
		errs[k] = v
	}

	err := validation.ValidateStructWithContext(ctx, in,
		validation.Field(&in.Title,
			validation.When(!in.partial, validation.NotNil.Error(msgRequired)),
			validation.When(in.Title != nil,
				validation.Required.Error(msgBlank),
				maxLength(TitleMaxLength),
			),
		),
		validation.Field(&in.PublicationYear,
			validation.When(!in.partial, validation.NotNil.Error(msgRequired)),
			validation.By(notAfterYear(now.Year())),
		),
		validation.Field(&in.Author,
			validation.When(!in.partial, validation.NotNil.Error(msgRequired)),
			validation.WithContext(authorExists(authors)),
		),
	)

	return merge(errs, err)
}

// Apply copies the supplied fields onto b
func (in *BookInput) Apply(b *types.Book) {
	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.PublicationYear != nil {
		b.PublicationYear = *in.PublicationYear
	}
	if in.Author != nil {
		b.AuthorId = *in.Author
	}
}

func notAfterYear(current int) validation.RuleFunc {
	return func(value interface{}) error {
		year, ok := value.(*int)
		if !ok || year == nil {
			return nil
		}

		if *year > current {
			return validation.NewError("validation_future_year", fmt.Sprintf(msgFutureYearTmpl, current))
		}

		return nil
	}
}

func authorExists(authors AuthorLookup) validation.RuleWithContextFunc {
	return func(ctx context.Context, value interface{}) error {
		id, ok := value.(*int64)
		if !ok || id == nil {
			return nil
		}

		a, err := authors.GetById(ctx, *id)
		if err != nil {
			return validation.NewInternalError(fmt.Errorf("looking up author %d: %w", *id, err))
		}

		if a == nil {
			return validation.NewError("validation_author_missing", fmt.Sprintf(msgAuthorMissTmpl, *id))
		}

		return nil
	}
}

// UnknownAuthor is the field error for a book whose author disappeared
// between validation and the write
func UnknownAuthor(id int64) Errors {
	return Errors{fieldBookAuthor: {fmt.Sprintf(msgAuthorMissTmpl, id)}}
}
