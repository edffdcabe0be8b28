package serializer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	msgRequired      = "This field is required."
	msgBlank         = "This field may not be blank."
	msgNull          = "This field may not be null."
	msgNotString     = "Not a valid string."
	msgNotInteger    = "A valid integer is required."
	msgUnknownField  = "Unknown field."
	msgMaxLengthTmpl = "Ensure this field has no more than %d characters."
)

// Errors maps a payload field to its messages, rendered to clients as is
type Errors map[string][]string

func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e[k], " "))
	}

	return "invalid payload: " + strings.Join(parts, "; ")
}

// ParseError is returned when the body is not a JSON object
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "JSON parse error - " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// merge folds ozzo errors into errs. Decode errors already present for a
// field win, since the rule failure is only a consequence of them.
func merge(errs Errors, err error) error {
	if err == nil {
		if len(errs) == 0 {
			return nil
		}
		return errs
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating payload: %w", err)
	}

	for field, ferr := range verrs {
		if ferr == nil {
			continue
		}
		if _, ok := errs[field]; ok {
			continue
		}
		errs.Add(field, ferr.Error())
	}

	if len(errs) == 0 {
		return nil
	}

	return errs
}

func maxLength(n int) validation.Rule {
	return validation.RuneLength(0, n).Error(fmt.Sprintf(msgMaxLengthTmpl, n))
}
