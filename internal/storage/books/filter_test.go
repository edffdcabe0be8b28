package books

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterEmpty(t *testing.T) {
	f, err := ParseFilter(url.Values{})
	require.NoError(t, err)

	assert.Empty(t, f.Title)
	assert.Empty(t, f.AuthorName)
	assert.Nil(t, f.Year)
	assert.Nil(t, f.YearGte)
	assert.Nil(t, f.YearLte)
	assert.Empty(t, f.SearchTerms)
	assert.Equal(t, DefaultOrdering, f.Ordering)
}

func TestParseFilterAllParams(t *testing.T) {
	q, _ := url.ParseQuery("title=+harry+&author__name=rowling&publication_year=1997" +
		"&publication_year__gte=1990&publication_year__lte=2000&search=potter,stone&ordering=-publication_year,title")

	f, err := ParseFilter(q)
	require.NoError(t, err)

	assert.Equal(t, "harry", f.Title)
	assert.Equal(t, "rowling", f.AuthorName)
	require.NotNil(t, f.Year)
	assert.Equal(t, 1997, *f.Year)
	require.NotNil(t, f.YearGte)
	assert.Equal(t, 1990, *f.YearGte)
	require.NotNil(t, f.YearLte)
	assert.Equal(t, 2000, *f.YearLte)
	assert.Equal(t, []string{"potter", "stone"}, f.SearchTerms)
	assert.Equal(t, []Order{
		{Field: OrderByYear, Desc: true},
		{Field: OrderByTitle},
	}, f.Ordering)
}

func TestParseFilterRejectsNonNumericYears(t *testing.T) {
	q := url.Values{
		ParamYear:    {"nineteen"},
		ParamYearLte: {"2000x"},
		ParamYearGte: {"1990"},
	}

	_, err := ParseFilter(q)
	require.Error(t, err)

	var invalid InvalidParams
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, InvalidParams{
		ParamYear:    "Enter a number.",
		ParamYearLte: "Enter a number.",
	}, invalid)
	assert.Contains(t, err.Error(), "publication_year: Enter a number.")
}

func TestParseOrdering(t *testing.T) {
	tests := []struct {
		raw  string
		want []Order
	}{
		{"", DefaultOrdering},
		{"title", []Order{{Field: OrderByTitle}}},
		{"-title", []Order{{Field: OrderByTitle, Desc: true}}},
		{"author__name", []Order{{Field: OrderByAuthorName}}},
		{"bogus", DefaultOrdering},
		{"bogus,-publication_year", []Order{{Field: OrderByYear, Desc: true}}},
		{" title , title ,-title", []Order{{Field: OrderByTitle}}},
		{"--title", DefaultOrdering},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOrdering(tt.raw))
		})
	}
}

func TestSplitSearchTerms(t *testing.T) {
	assert.Equal(t, []string{"harry", "potter", "stone"}, SplitSearchTerms(" harry  potter,,stone "))
	assert.Empty(t, SplitSearchTerms("  , "))
}
