package server

import (
	"errors"
	"net/http"

	"library/internal/serializer"
	"library/internal/storage/books"
	"library/internal/types"
)

func (a *api) listBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := books.ParseFilter(r.URL.Query())
	if err != nil {
		var invalid books.InvalidParams
		if errors.As(err, &invalid) {
			fields := make(map[string][]string, len(invalid))
			for param, msg := range invalid {
				fields[param] = []string{msg}
			}
			a.rr.RespondInvalid(w, r.Context(), fields)
			return
		}

		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	rows, err := a.books.Search(r.Context(), filter)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	if rows == nil {
		rows = make([]*types.Book, 0)
	}

	a.rr.SendJson(w, r.Context(), http.StatusOK, rows)
}

func (a *api) getBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(r)
	if !ok {
		a.notFound(w, r)
		return
	}

	b, err := a.books.GetById(r.Context(), id)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	if b == nil {
		a.notFound(w, r)
		return
	}

	a.rr.SendJson(w, r.Context(), http.StatusOK, b)
}

func (a *api) createBook(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	in, err := serializer.DecodeBook(r.Body, false)
	if err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	if err := in.Validate(r.Context(), a.authors, a.now()); err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	var b types.Book
	in.Apply(&b)

	if err := a.books.Insert(r.Context(), &b); err != nil {
		a.respondWriteError(w, r, &b, err)
		return
	}

	a.rr.SendJson(w, r.Context(), http.StatusCreated, &b)
}

func (a *api) updateBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(r)
	if !ok {
		a.notFound(w, r)
		return
	}

	b, err := a.books.GetById(r.Context(), id)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	if b == nil {
		a.notFound(w, r)
		return
	}

	limitBody(w, r)

	in, err := serializer.DecodeBook(r.Body, isPartial(r))
	if err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	if err := in.Validate(r.Context(), a.authors, a.now()); err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	in.Apply(b)

	found, err := a.books.Update(r.Context(), b)
	if err != nil {
		a.respondWriteError(w, r, b, err)
		return
	}

	if !found {
		a.notFound(w, r)
		return
	}

	a.rr.SendJson(w, r.Context(), http.StatusOK, b)
}

func (a *api) deleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(r)
	if !ok {
		a.notFound(w, r)
		return
	}

	found, err := a.books.Delete(r.Context(), id)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	if !found {
		a.notFound(w, r)
		return
	}

	a.rr.SendNoContent(w)
}

// respondWriteError reports an author removed after validation as the same
// field error validation would have produced
func (a *api) respondWriteError(w http.ResponseWriter, r *http.Request, b *types.Book, err error) {
	if errors.Is(err, books.ErrUnknownAuthor) {
		a.rr.RespondInvalid(w, r.Context(), serializer.UnknownAuthor(b.AuthorId))
		return
	}

	a.rr.RespondAndLogError(w, r.Context(), err)
}
