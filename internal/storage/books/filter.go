package books

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type OrderField string

const (
	OrderByTitle      OrderField = "title"
	OrderByYear       OrderField = "publication_year"
	OrderByAuthorName OrderField = "author__name"
)

type Order struct {
	Field OrderField
	Desc  bool
}

// DefaultOrdering applies when the request asks for no (valid) ordering
var DefaultOrdering = []Order{{Field: OrderByTitle}}

const (
	ParamTitle      = "title"
	ParamAuthorName = "author__name"
	ParamYear       = "publication_year"
	ParamYearGte    = "publication_year__gte"
	ParamYearLte    = "publication_year__lte"
	ParamSearch     = "search"
	ParamOrdering   = "ordering"
)

// Filter is the read-time predicate and sort order of the book list.
// Zero values mean "no constraint".
type Filter struct {
	// Title and AuthorName match case-insensitive substrings
	Title      string
	AuthorName string

	Year    *int
	YearGte *int
	YearLte *int

	// Every term must be found in either the title or the author name
	SearchTerms []string

	Ordering []Order
}

// InvalidParams maps query parameter name to the reason it was rejected
type InvalidParams map[string]string

func (e InvalidParams) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sb := strings.Builder{}
	sb.WriteString("invalid query parameters: ")
	for ix, k := range keys {
		if ix != 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(k + ": " + e[k])
	}

	return sb.String()
}

// ParseFilter reads the recognised book list parameters from q.
// Unknown parameters and unknown ordering fields are ignored.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		Title:      strings.TrimSpace(q.Get(ParamTitle)),
		AuthorName: strings.TrimSpace(q.Get(ParamAuthorName)),
	}

	invalid := InvalidParams{}
	for param, dst := range map[string]**int{
		ParamYear:    &f.Year,
		ParamYearGte: &f.YearGte,
		ParamYearLte: &f.YearLte,
	} {
		raw := strings.TrimSpace(q.Get(param))
		if raw == "" {
			continue
		}

		v, err := strconv.Atoi(raw)
		if err != nil {
			invalid[param] = "Enter a number."
			continue
		}

		*dst = &v
	}

	if len(invalid) > 0 {
		return Filter{}, invalid
	}

	f.SearchTerms = SplitSearchTerms(q.Get(ParamSearch))
	f.Ordering = ParseOrdering(q.Get(ParamOrdering))

	return f, nil
}

// SplitSearchTerms splits on whitespace and commas, dropping empty terms
func SplitSearchTerms(raw string) []string {
	raw = strings.ReplaceAll(raw, "\x00", "")
	return strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

func ParseOrdering(raw string) []Order {
	var ret []Order
	seen := make(map[OrderField]struct{})

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)

		desc := strings.HasPrefix(part, "-")
		field := OrderField(strings.TrimPrefix(part, "-"))

		switch field {
		case OrderByTitle, OrderByYear, OrderByAuthorName:
		default:
			continue
		}

		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}

		ret = append(ret, Order{Field: field, Desc: desc})
	}

	if len(ret) == 0 {
		return DefaultOrdering
	}

	return ret
}
