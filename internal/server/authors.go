package server

import (
	"net/http"
	"strings"

	"library/internal/serializer"
	"library/internal/types"
)

func (a *api) listAuthors(w http.ResponseWriter, r *http.Request) {
	rows, err := a.authors.Search(r.Context(), strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Id)
	}

	owned, err := a.books.GetByAuthorIds(r.Context(), ids...)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	res := make([]*types.AuthorWithBooks, 0, len(rows))
	for _, row := range rows {
		res = append(res, types.NewAuthorWithBooks(row, owned[row.Id]))
	}

	a.rr.SendJson(w, r.Context(), http.StatusOK, res)
}

func (a *api) createAuthor(w http.ResponseWriter, r *http.Request) {
	limitBody(w, r)

	in, err := serializer.DecodeAuthor(r.Body, false)
	if err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	if err := in.Validate(); err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	var author types.Author
	in.Apply(&author)

	if err := a.authors.Insert(r.Context(), &author); err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	a.rr.SendJson(w, r.Context(), http.StatusCreated, types.NewAuthorWithBooks(&author, nil))
}

func (a *api) getAuthor(w http.ResponseWriter, r *http.Request) {
	author, ok := a.loadAuthor(w, r)
	if !ok {
		return
	}

	a.sendAuthorDetail(w, r, author)
}

func (a *api) updateAuthor(w http.ResponseWriter, r *http.Request) {
	author, ok := a.loadAuthor(w, r)
	if !ok {
		return
	}

	limitBody(w, r)

	in, err := serializer.DecodeAuthor(r.Body, isPartial(r))
	if err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	if err := in.Validate(); err != nil {
		a.respondPayloadError(w, r, err)
		return
	}

	in.Apply(author)

	found, err := a.authors.Update(r.Context(), author)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	if !found {
		a.notFound(w, r)
		return
	}

	a.sendAuthorDetail(w, r, author)
}

func (a *api) deleteAuthor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathId(r)
	if !ok {
		a.notFound(w, r)
		return
	}

	found, err := a.authors.Delete(r.Context(), id)
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

// loadAuthor resolves {id}, having already responded when it returns false
func (a *api) loadAuthor(w http.ResponseWriter, r *http.Request) (*types.Author, bool) {
	id, ok := pathId(r)
	if !ok {
		a.notFound(w, r)
		return nil, false
	}

	author, err := a.authors.GetById(r.Context(), id)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return nil, false
	}

	if author == nil {
		a.notFound(w, r)
		return nil, false
	}

	return author, true
}

func (a *api) sendAuthorDetail(w http.ResponseWriter, r *http.Request, author *types.Author) {
	owned, err := a.books.GetByAuthorIds(r.Context(), author.Id)
	if err != nil {
		a.rr.RespondAndLogError(w, r.Context(), err)
		return
	}

	a.rr.SendJson(w, r.Context(), http.StatusOK, types.NewAuthorDetail(author, owned[author.Id]))
}
