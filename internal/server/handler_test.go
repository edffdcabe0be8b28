package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library/internal/auth"
	"library/internal/response"
	"library/internal/storage/books"
	"library/internal/storage/memory"
	"library/internal/types"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t       *testing.T
	store   *memory.Store
	handler http.Handler
	token   string

	rowling *types.Author
	tolkien *types.Author
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()

	rowling := &types.Author{Name: "J.K. Rowling"}
	tolkien := &types.Author{Name: "J.R.R. Tolkien"}
	require.NoError(t, store.Authors().Insert(ctx, rowling))
	require.NoError(t, store.Authors().Insert(ctx, tolkien))

	for _, b := range []*types.Book{
		{Title: "Harry Potter and the Philosopher's Stone", PublicationYear: 1997, AuthorId: rowling.Id},
		{Title: "Harry Potter and the Chamber of Secrets", PublicationYear: 1998, AuthorId: rowling.Id},
		{Title: "The Hobbit", PublicationYear: 1937, AuthorId: tolkien.Id},
		{Title: "The Lord of the Rings", PublicationYear: 1954, AuthorId: tolkien.Id},
	} {
		require.NoError(t, store.Books().Insert(ctx, b))
	}

	tokens, err := auth.NewTokens("test-secret")
	require.NoError(t, err)
	token, err := tokens.Issue("alice", time.Hour)
	require.NoError(t, err)

	h := Handler(store.Authors(), store.Books(), tokens, &response.Responder{},
		func() time.Time { return testNow })

	return &fixture{t: t, store: store, handler: h, token: token, rowling: rowling, tolkien: tolkien}
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	f.t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bookCount() int {
	f.t.Helper()

	bs, err := f.store.Books().Search(context.Background(), books.Filter{})
	require.NoError(f.t, err)
	return len(bs)
}

func (f *fixture) authorCount() int {
	f.t.Helper()

	as, err := f.store.Authors().Search(context.Background(), "")
	require.NoError(f.t, err)
	return len(as)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func bookTitles(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ret := make([]string, 0)
	for _, b := range decode[[]types.Book](t, rec) {
		ret = append(ret, b.Title)
	}
	return ret
}

func TestAnonymousWritesAreForbidden(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/books/create/", `{"title": "x", "publication_year": 2000, "author": 1}`},
		{http.MethodPut, "/api/books/update/1/", `{"title": "x", "publication_year": 2000, "author": 1}`},
		{http.MethodPatch, "/api/books/update/1/", `{"title": "x"}`},
		{http.MethodDelete, "/api/books/delete/1/", ``},
		{http.MethodPost, "/api/authors/", `{"name": "x"}`},
		{http.MethodPut, "/api/authors/1/", `{"name": "x"}`},
		{http.MethodPatch, "/api/authors/1/", `{"name": "x"}`},
		{http.MethodDelete, "/api/authors/1/", ``},
		// the gate runs before the body is looked at
		{http.MethodPost, "/api/books/create/", `{not json`},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, tt.body, false)

			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.JSONEq(t, `{"detail": "Authentication credentials were not provided."}`, rec.Body.String())
		})
	}

	assert.Equal(t, 4, f.bookCount())
	assert.Equal(t, 2, f.authorCount())

	book, err := f.store.Books().GetById(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Harry Potter and the Philosopher's Stone", book.Title)
}

func TestInvalidTokenIsAnonymous(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/books/delete/1/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 4, f.bookCount())

	// reads stay open with a bad token
	req = httptest.NewRequest(http.MethodGet, "/api/books/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateBook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/books/create/",
		`{"id": 99, "title": "Fantastic Beasts", "publication_year": 2001, "author": 1}`, true)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id": 5, "title": "Fantastic Beasts", "publication_year": 2001, "author": 1}`, rec.Body.String())
	assert.Equal(t, 5, f.bookCount())
}

func TestCreateBookYearBoundary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/books/create/",
		`{"title": "From the future", "publication_year": 2027, "author": 1}`, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"publication_year": ["Publication year cannot be in the future. Current year is 2026."]}`,
		rec.Body.String())
	assert.Equal(t, 4, f.bookCount())

	rec = f.do(http.MethodPost, "/api/books/create/",
		`{"title": "This year", "publication_year": 2026, "author": 1}`, true)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateBookRejects(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown author", `{"title": "x", "publication_year": 2000, "author": 42}`,
			`{"author": ["Invalid pk \"42\" - object does not exist."]}`},
		{"missing fields", `{"title": "x"}`,
			`{"publication_year": ["This field is required."], "author": ["This field is required."]}`},
		{"blank title", `{"title": "", "publication_year": 2000, "author": 1}`,
			`{"title": ["This field may not be blank."]}`},
		{"malformed", `{"title": `,
			`{"detail": "JSON parse error - unexpected EOF"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/books/create/", tt.body, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
		})
	}

	assert.Equal(t, 4, f.bookCount())
}

func TestListBooks(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{
			"Harry Potter and the Chamber of Secrets",
			"Harry Potter and the Philosopher's Stone",
			"The Hobbit",
			"The Lord of the Rings",
		}},
		{"?title=harry", []string{
			"Harry Potter and the Chamber of Secrets",
			"Harry Potter and the Philosopher's Stone",
		}},
		{"?author__name=TOLKIEN", []string{"The Hobbit", "The Lord of the Rings"}},
		{"?publication_year=1937", []string{"The Hobbit"}},
		{"?publication_year__gte=1950&publication_year__lte=1997", []string{
			"Harry Potter and the Philosopher's Stone",
			"The Lord of the Rings",
		}},
		{"?search=rowling", []string{
			"Harry Potter and the Chamber of Secrets",
			"Harry Potter and the Philosopher's Stone",
		}},
		{"?search=harry+stone", []string{"Harry Potter and the Philosopher's Stone"}},
		{"?search=hobbit,tolkien", []string{"The Hobbit"}},
		{"?ordering=publication_year", []string{
			"The Hobbit",
			"The Lord of the Rings",
			"Harry Potter and the Philosopher's Stone",
			"Harry Potter and the Chamber of Secrets",
		}},
		{"?ordering=-publication_year", []string{
			"Harry Potter and the Chamber of Secrets",
			"Harry Potter and the Philosopher's Stone",
			"The Lord of the Rings",
			"The Hobbit",
		}},
		{"?ordering=-author__name,title", []string{
			"The Hobbit",
			"The Lord of the Rings",
			"Harry Potter and the Chamber of Secrets",
			"Harry Potter and the Philosopher's Stone",
		}},
		{"?title=%25", []string{}},
		{"?title=harry&publication_year__lte=1997", []string{"Harry Potter and the Philosopher's Stone"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, bookTitles(t, f.do(http.MethodGet, "/api/books/"+tt.query, "", false)))
		})
	}
}

func TestListBooksBadYear(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/books/?publication_year__gte=old", "", false)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"publication_year__gte": ["Enter a number."]}`, rec.Body.String())
}

func TestGetBook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/books/3/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id": 3, "title": "The Hobbit", "publication_year": 1937, "author": 2}`, rec.Body.String())

	for _, path := range []string{"/api/books/99/", "/api/books/abc/", "/api/books/0/", "/api/nowhere/"} {
		rec := f.do(http.MethodGet, path, "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"detail": "Not found."}`, rec.Body.String(), path)
	}
}

func TestUpdateBook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/api/books/update/3/",
		`{"title": "The Hobbit, or There and Back Again", "publication_year": 1937, "author": 2}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "The Hobbit, or There and Back Again", decode[types.Book](t, rec).Title)

	rec = f.do(http.MethodPatch, "/api/books/update/3/", `{"publication_year": 1938}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t,
		`{"id": 3, "title": "The Hobbit, or There and Back Again", "publication_year": 1938, "author": 2}`,
		rec.Body.String())

	rec = f.do(http.MethodPut, "/api/books/update/3/", `{"title": "Only title"}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPatch, "/api/books/update/3/", `{"publication_year": 2100}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stored, err := f.store.Books().GetById(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1938, stored.PublicationYear)

	rec = f.do(http.MethodPatch, "/api/books/update/99/", `{"title": "x"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteBook(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodDelete, "/api/books/delete/1/", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, 3, f.bookCount())

	rec = f.do(http.MethodDelete, "/api/books/delete/1/", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodGet, "/api/books/1/", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAuthors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/authors/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]types.AuthorWithBooks](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, "J.K. Rowling", got[0].Name)
	assert.Equal(t, "J.R.R. Tolkien", got[1].Name)

	var tolkienTitles []string
	for _, b := range got[1].Books {
		tolkienTitles = append(tolkienTitles, b.Title)
	}
	assert.Equal(t, []string{"The Lord of the Rings", "The Hobbit"}, tolkienTitles)

	rec = f.do(http.MethodGet, "/api/authors/?search=tolk", "", false)
	got = decode[[]types.AuthorWithBooks](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, f.tolkien.Id, got[0].Id)
}

func TestCreateAuthor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/authors/", `{"name": "Ursula K. Le Guin", "books": [1, 2]}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id": 3, "name": "Ursula K. Le Guin", "books": []}`, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/authors/", `{"name": ""}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"name": ["This field may not be blank."]}`, rec.Body.String())

	assert.Equal(t, 3, f.authorCount())
	assert.Equal(t, 4, f.bookCount())
}

func TestAuthorDetail(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/authors/1/", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[types.AuthorDetail](t, rec)
	assert.Equal(t, "J.K. Rowling", got.Name)
	assert.Equal(t, 2, got.BooksCount)
	require.Len(t, got.Books, 2)
	assert.Equal(t, 1998, got.Books[0].PublicationYear)

	rec = f.do(http.MethodGet, "/api/authors/7/", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAuthor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPatch, "/api/authors/2/", `{"name": "John Ronald Reuel Tolkien"}`, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[types.AuthorDetail](t, rec)
	assert.Equal(t, "John Ronald Reuel Tolkien", got.Name)
	assert.Equal(t, 2, got.BooksCount)

	rec = f.do(http.MethodPut, "/api/authors/2/", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"name": ["This field is required."]}`, rec.Body.String())
}

func TestDeleteAuthorCascades(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodDelete, "/api/authors/2/", "", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, 1, f.authorCount())
	assert.Equal(t, []string{
		"Harry Potter and the Chamber of Secrets",
		"Harry Potter and the Philosopher's Stone",
	}, bookTitles(t, f.do(http.MethodGet, "/api/books/", "", false)))

	rec = f.do(http.MethodDelete, "/api/authors/2/", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodDelete, "/api/books/", "", true)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.JSONEq(t, `{"detail": "Method \"DELETE\" not allowed."}`, rec.Body.String())
}
