package types

type Author struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type Book struct {
	Id              int64  `json:"id"`
	Title           string `json:"title"`
	PublicationYear int    `json:"publication_year"`
	AuthorId        int64  `json:"author"`
}

// AuthorWithBooks is the list and create representation of an author.
// Books are nested read-only and never accepted on input.
type AuthorWithBooks struct {
	Id    int64   `json:"id"`
	Name  string  `json:"name"`
	Books []*Book `json:"books"`
}

// AuthorDetail extends AuthorWithBooks with the number of owned books.
type AuthorDetail struct {
	AuthorWithBooks
	BooksCount int `json:"books_count"`
}

func NewAuthorWithBooks(a *Author, books []*Book) *AuthorWithBooks {
	if books == nil {
		books = make([]*Book, 0)
	}

	return &AuthorWithBooks{Id: a.Id, Name: a.Name, Books: books}
}

func NewAuthorDetail(a *Author, books []*Book) *AuthorDetail {
	wb := NewAuthorWithBooks(a, books)
	return &AuthorDetail{AuthorWithBooks: *wb, BooksCount: len(wb.Books)}
}
