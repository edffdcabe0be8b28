package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"library/internal/auth"
	"library/internal/response"
	"library/internal/serializer"
	"library/internal/storage/authors"
	"library/internal/storage/books"
)

const (
	maxBodyBytes = 1 << 20

	detailNotFound     = "Not found."
	detailNotAuthed    = "Authentication credentials were not provided."
	detailNotAllowedFn = "Method \"%s\" not allowed."
)

type api struct {
	authors authors.Repository
	books   books.Repository
	rr      *response.Responder
	now     func() time.Time
}

// Handler routes the library API under /api. Reads are open, writes need a
// bearer identity accepted by v. now supplies the clock for the future
// publication year check.
func Handler(ar authors.Repository, br books.Repository, v auth.Verifier,
	rr *response.Responder, now func() time.Time) http.Handler {

	a := &api{authors: ar, books: br, rr: rr, now: now}

	r := chi.NewRouter()
	r.NotFound(a.notFound)
	r.MethodNotAllowed(a.methodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(v))
		write := r.With(auth.RequireIdentity(a.forbidden))

		r.Get("/books/", a.listBooks)
		r.Get("/books/{id}/", a.getBook)
		write.Post("/books/create/", a.createBook)
		write.Put("/books/update/{id}/", a.updateBook)
		write.Patch("/books/update/{id}/", a.updateBook)
		write.Delete("/books/delete/{id}/", a.deleteBook)

		r.Get("/authors/", a.listAuthors)
		write.Post("/authors/", a.createAuthor)
		r.Get("/authors/{id}/", a.getAuthor)
		write.Put("/authors/{id}/", a.updateAuthor)
		write.Patch("/authors/{id}/", a.updateAuthor)
		write.Delete("/authors/{id}/", a.deleteAuthor)
	})

	return r
}

func (a *api) notFound(w http.ResponseWriter, r *http.Request) {
	a.rr.RespondDetail(w, r.Context(), http.StatusNotFound, detailNotFound)
}

func (a *api) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.rr.RespondDetail(w, r.Context(), http.StatusMethodNotAllowed, fmt.Sprintf(detailNotAllowedFn, r.Method))
}

func (a *api) forbidden(w http.ResponseWriter, r *http.Request) {
	a.rr.RespondDetail(w, r.Context(), http.StatusForbidden, detailNotAuthed)
}

// pathId returns the {id} URL param, false when it is not a positive integer
func pathId(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

func isPartial(r *http.Request) bool {
	return r.Method == http.MethodPatch
}

func limitBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
}

// respondPayloadError renders decode and validation failures as 400 and
// anything else as 500
func (a *api) respondPayloadError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *serializer.ParseError
	if errors.As(err, &perr) {
		a.rr.RespondDetail(w, r.Context(), http.StatusBadRequest, perr.Error())
		return
	}

	var fields serializer.Errors
	if errors.As(err, &fields) {
		a.rr.RespondInvalid(w, r.Context(), fields)
		return
	}

	a.rr.RespondAndLogError(w, r.Context(), err)
}
