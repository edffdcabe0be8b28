package books

import (
	"context"
	"errors"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/storage/like"
	"library/internal/types"
)

const codeForeignKeyViolation = "23503"

var bookColumns = []any{
	goqu.I("book.id"),
	goqu.I("book.title"),
	goqu.I("book.publication_year"),
	goqu.I("book.author_id"),
}

var orderColumns = map[OrderField]exp.IdentifierExpression{
	OrderByTitle:      goqu.I("book.title"),
	OrderByYear:       goqu.I("book.publication_year"),
	OrderByAuthorName: goqu.I("author.name"),
}

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxBook struct {
	Id              int64  `db:"id" goqu:"skipinsert,skipupdate"`
	Title           string `db:"title"`
	PublicationYear int    `db:"publication_year"`
	AuthorId        int64  `db:"author_id"`
}

func (b *pgxBook) intoCommon() *types.Book {
	return &types.Book{
		Id:              b.Id,
		Title:           b.Title,
		PublicationYear: b.PublicationYear,
		AuthorId:        b.AuthorId,
	}
}

func fromCommon(b *types.Book) pgxBook {
	return pgxBook{
		Id:              b.Id,
		Title:           b.Title,
		PublicationYear: b.PublicationYear,
		AuthorId:        b.AuthorId,
	}
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Book, error) {
	sql, params, err := p.g.From("book").
		Select(bookColumns...).
		Where(goqu.I("book.id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxBook

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) GetByAuthorIds(ctx context.Context, authorIds ...int64) (map[int64][]*types.Book, error) {
	if len(authorIds) == 0 {
		return make(map[int64][]*types.Book), nil
	}

	sql, params, err := p.byAuthorsQuery(authorIds).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBook

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make(map[int64][]*types.Book)
	for _, row := range rows {
		ret[row.AuthorId] = append(ret[row.AuthorId], row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) byAuthorsQuery(authorIds []int64) *goqu.SelectDataset {
	return p.g.From("book").
		Select(bookColumns...).
		Where(goqu.I("book.author_id").In(authorIds)).
		Order(
			goqu.I("book.publication_year").Desc(),
			goqu.I("book.title").Asc(),
			goqu.I("book.id").Asc(),
		)
}

func (p *pgxRepo) Search(ctx context.Context, filter Filter) ([]*types.Book, error) {
	sql, params, err := p.searchQuery(filter).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBook

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Book, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) searchQuery(f Filter) *goqu.SelectDataset {
	qb := p.g.From("book").
		Select(bookColumns...).
		InnerJoin(goqu.T("author"), goqu.On(
			goqu.I("author.id").Eq(goqu.I("book.author_id")),
		))

	if title := like.Escape(f.Title); title != "" {
		qb = qb.Where(goqu.I("book.title").ILike("%" + title + "%"))
	}

	if name := like.Escape(f.AuthorName); name != "" {
		qb = qb.Where(goqu.I("author.name").ILike("%" + name + "%"))
	}

	if f.Year != nil {
		qb = qb.Where(goqu.I("book.publication_year").Eq(*f.Year))
	}

	if f.YearGte != nil {
		qb = qb.Where(goqu.I("book.publication_year").Gte(*f.YearGte))
	}

	if f.YearLte != nil {
		qb = qb.Where(goqu.I("book.publication_year").Lte(*f.YearLte))
	}

	for _, term := range f.SearchTerms {
		term = like.Escape(term)
		if term == "" {
			continue
		}

		qb = qb.Where(goqu.Or(
			goqu.I("book.title").ILike("%"+term+"%"),
			goqu.I("author.name").ILike("%"+term+"%"),
		))
	}

	ordering := f.Ordering
	if len(ordering) == 0 {
		ordering = DefaultOrdering
	}

	for _, o := range ordering {
		col, ok := orderColumns[o.Field]
		if !ok {
			continue
		}

		if o.Desc {
			qb = qb.OrderAppend(col.Desc())
		} else {
			qb = qb.OrderAppend(col.Asc())
		}
	}

	return qb.OrderAppend(goqu.I("book.id").Asc())
}

func (p *pgxRepo) Insert(ctx context.Context, book *types.Book) error {
	sql, params, err := p.g.Insert("book").
		Rows(fromCommon(book)).
		Returning("id").
		ToSQL()
	if err != nil {
		return err
	}

	err = p.pg.QueryRow(ctx, sql, params...).Scan(&book.Id)
	return mapWriteError(err)
}

func (p *pgxRepo) Update(ctx context.Context, book *types.Book) (bool, error) {
	sql, params, err := p.g.Update("book").
		Set(fromCommon(book)).
		Where(goqu.C("id").Eq(book.Id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, mapWriteError(err)
	}

	return tag.RowsAffected() > 0, nil
}

func (p *pgxRepo) Delete(ctx context.Context, id int64) (bool, error) {
	sql, params, err := p.g.Delete("book").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return false, err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

// The author may vanish between validation and the write
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
		return ErrUnknownAuthor
	}

	return err
}
