package authors

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"library/internal/storage/like"
	"library/internal/types"
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxAuthor struct {
	Id   int64  `db:"id" goqu:"skipinsert,skipupdate"`
	Name string `db:"name"`
}

func (a *pgxAuthor) intoCommon() *types.Author {
	return &types.Author{Id: a.Id, Name: a.Name}
}

func (p *pgxRepo) GetById(ctx context.Context, id int64) (*types.Author, error) {
	sql, params, err := p.g.From("author").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	return p.getOne(ctx, sql, params)
}

func (p *pgxRepo) GetByName(ctx context.Context, name string) (*types.Author, error) {
	sql, params, err := p.byNameQuery(name).ToSQL()
	if err != nil {
		return nil, err
	}

	return p.getOne(ctx, sql, params)
}

func (p *pgxRepo) byNameQuery(name string) *goqu.SelectDataset {
	return p.g.From("author").
		Where(goqu.L("lower(name)").Eq(strings.ToLower(strings.TrimSpace(name)))).
		Order(goqu.C("id").Asc()).
		Limit(1)
}

func (p *pgxRepo) getOne(ctx context.Context, sql string, params []any) (*types.Author, error) {
	var row pgxAuthor

	err := pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) Search(ctx context.Context, query string) ([]*types.Author, error) {
	sql, params, err := p.searchQuery(query).ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxAuthor

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Author, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}

func (p *pgxRepo) searchQuery(query string) *goqu.SelectDataset {
	qb := p.g.From("author").
		Order(goqu.C("name").Asc(), goqu.C("id").Asc())

	if query = like.Escape(query); query != "" {
		qb = qb.Where(goqu.C("name").ILike("%" + query + "%"))
	}

	return qb
}

func (p *pgxRepo) Insert(ctx context.Context, author *types.Author) error {
	sql, params, err := p.g.Insert("author").
		Rows(pgxAuthor{Name: author.Name}).
		Returning("id").
		ToSQL()
	if err != nil {
		return err
	}

	return p.pg.QueryRow(ctx, sql, params...).Scan(&author.Id)
}

func (p *pgxRepo) Update(ctx context.Context, author *types.Author) (bool, error) {
	sql, params, err := p.g.Update("author").
		Set(goqu.Record{"name": author.Name}).
		Where(goqu.C("id").Eq(author.Id)).
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

// Delete relies on the book.author_id foreign key cascading
func (p *pgxRepo) Delete(ctx context.Context, id int64) (bool, error) {
	sql, params, err := p.g.Delete("author").
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
