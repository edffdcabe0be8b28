package serializer

import (
	"io"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"library/internal/types"
)

const (
	NameMaxLength = 100

	fieldAuthorName = "name"
)

type AuthorInput struct {
	Name *string `json:"name"`

	partial    bool
	decodeErrs Errors
}

// DecodeAuthor reads an author payload. Nested books are read-only and
// silently dropped.
func DecodeAuthor(body io.Reader, partial bool) (*AuthorInput, error) {
	raw, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	in := &AuthorInput{partial: partial, decodeErrs: Errors{}}

	for key, val := range raw {
		switch key {
		case fieldAuthorName:
			s, msg := decodeString(val)
			if msg != "" {
				in.decodeErrs.Add(key, msg)
				continue
			}
			in.Name = s
		case fieldReadOnlyId, fieldReadOnlyBooks, fieldReadOnlyCount:
		default:
			in.decodeErrs.Add(key, msgUnknownField)
		}
	}

	return in, nil
}

func NewAuthorInput(name string) *AuthorInput {
	name = strings.TrimSpace(name)
	return &AuthorInput{Name: &name, decodeErrs: Errors{}}
}

func (in *AuthorInput) Validate() error {
	errs := Errors{}
	for k, v := range in.decodeErrs {
		errs[k] = v
	}

	err := validation.ValidateStruct(in,
		validation.Field(&in.Name,
			validation.When(!in.partial, validation.NotNil.Error(msgRequired)),
			validation.When(in.Name != nil,
				validation.Required.Error(msgBlank),
				maxLength(NameMaxLength),
			),
		),
	)

	return merge(errs, err)
}

func (in *AuthorInput) Apply(a *types.Author) {
	if in.Name != nil {
		a.Name = *in.Name
	}
}
