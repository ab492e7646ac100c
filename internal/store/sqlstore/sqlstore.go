// Package sqlstore is the database/sql store.Engine. Documents live in a
// single "documents" table keyed by (collection, id) with the full JSON body
// in a text column; revisions are checked with compare-and-swap statements.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/dbx"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
	"github.com/dmitrijs2005/ballotkeeper/internal/store/sqlstore/migrations"
)

// Engine implements store.Engine on a *sql.DB.
type Engine struct {
	db *sql.DB
	d  Dialect
}

var _ store.Engine = (*Engine)(nil)

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects to dsn, runs the embedded migrations and returns an engine
// that owns the connection.
func Open(ctx context.Context, d Dialect, dsn string) (*Engine, error) {
	db, err := sqlOpen(d.Driver, dsn)
	if err != nil {
		return nil, common.Storagef(err, "open %s", d.Name)
	}
	if d.MaxOpenConns > 0 {
		db.SetMaxOpenConns(d.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.Storagef(err, "connect %s", d.Name)
	}
	if err := RunMigrations(ctx, db, d); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewEngine(db, d), nil
}

// RunMigrations applies the embedded migrations of dialect d.
func RunMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(d.Goose); err != nil {
		return common.Storagef(err, "goose dialect")
	}
	if err := gooseUpContext(ctx, db, d.Dir); err != nil {
		return common.Storagef(err, "migrate %s", d.Name)
	}
	return nil
}

// NewEngine wraps an already migrated database.
func NewEngine(db *sql.DB, d Dialect) *Engine {
	return &Engine{db: db, d: d}
}

func (e *Engine) q(query string) string {
	return dbx.Rebind(e.d.Placeholder, query)
}

const columns = `collection, id, rev, type, created_at, updated_at, body`

func (e *Engine) Insert(ctx context.Context, rec store.Record) error {
	return e.insert(ctx, e.db, rec)
}

func (e *Engine) insert(ctx context.Context, db dbx.DBTX, rec store.Record) error {
	query := e.q(`INSERT INTO documents (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO NOTHING`)
	res, err := db.ExecContext(ctx, query,
		string(rec.Collection), rec.ID, rec.Rev, string(rec.Type),
		rec.CreatedAt.UnixNano(), rec.UpdatedAt.UnixNano(), string(rec.Body))
	if err != nil {
		return common.Storagef(err, "insert document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Storagef(err, "insert document")
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}

func (e *Engine) Get(ctx context.Context, c models.Collection, id string) (store.Record, error) {
	query := e.q(`SELECT ` + columns + ` FROM documents WHERE collection = ? AND id = ?`)
	rec, err := scanRecord(e.db.QueryRowContext(ctx, query, string(c), id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Record{}, common.ErrNotFound
	}
	if err != nil {
		return store.Record{}, common.Storagef(err, "get document")
	}
	return rec, nil
}

func (e *Engine) List(ctx context.Context, c models.Collection) ([]store.Record, error) {
	query := e.q(`SELECT ` + columns + ` FROM documents WHERE collection = ? ORDER BY id`)
	rows, err := e.db.QueryContext(ctx, query, string(c))
	if err != nil {
		return nil, common.Storagef(err, "list documents")
	}
	defer rows.Close()

	result := []store.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, common.Storagef(err, "list documents")
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Storagef(err, "list documents")
	}
	return result, nil
}

func (e *Engine) Replace(ctx context.Context, rec store.Record, expectedRev string) error {
	return e.inTx(ctx, "replace document", func(ctx context.Context, tx dbx.DBTX) error {
		query := e.q(`UPDATE documents SET rev = ?, type = ?, updated_at = ?, body = ?
			WHERE collection = ? AND id = ? AND rev = ?`)
		res, err := tx.ExecContext(ctx, query,
			rec.Rev, string(rec.Type), rec.UpdatedAt.UnixNano(), string(rec.Body),
			string(rec.Collection), rec.ID, expectedRev)
		if err != nil {
			return common.Storagef(err, "replace document")
		}
		return e.checkSwap(ctx, tx, res, rec.Collection, rec.ID)
	})
}

func (e *Engine) Remove(ctx context.Context, c models.Collection, id, expectedRev string) error {
	return e.inTx(ctx, "remove document", func(ctx context.Context, tx dbx.DBTX) error {
		query := e.q(`DELETE FROM documents WHERE collection = ? AND id = ? AND rev = ?`)
		res, err := tx.ExecContext(ctx, query, string(c), id, expectedRev)
		if err != nil {
			return common.Storagef(err, "remove document")
		}
		return e.checkSwap(ctx, tx, res, c, id)
	})
}

// inTx runs fn in a transaction. Begin and commit failures come back
// unclassified from database/sql and are reported as storage errors.
func (e *Engine) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	err := dbx.WithTx(ctx, e.db, nil, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrNotFound),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrAlreadyExists),
		errors.Is(err, common.ErrStorage):
		return err
	}
	return common.Storagef(err, "%s", op)
}

// checkSwap turns a compare-and-swap that touched no row into NotFound or
// Conflict depending on whether the document exists.
func (e *Engine) checkSwap(ctx context.Context, tx dbx.DBTX, res sql.Result, c models.Collection, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return common.Storagef(err, "rows affected")
	}
	if n > 0 {
		return nil
	}

	var rev string
	err = tx.QueryRowContext(ctx, e.q(`SELECT rev FROM documents WHERE collection = ? AND id = ?`), string(c), id).Scan(&rev)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return common.ErrNotFound
	case err != nil:
		return common.Storagef(err, "read revision")
	}
	return common.ErrConflict
}

func (e *Engine) ReplaceCollection(ctx context.Context, c models.Collection, recs []store.Record) error {
	return e.inTx(ctx, "replace collection", func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, e.q(`DELETE FROM documents WHERE collection = ?`), string(c)); err != nil {
			return common.Storagef(err, "clear collection")
		}
		for _, rec := range recs {
			rec.Collection = c
			if err := e.insert(ctx, tx, rec); err != nil {
				if errors.Is(err, common.ErrAlreadyExists) {
					return common.Storagef(err, "duplicate id %q", rec.ID)
				}
				return err
			}
		}
		return nil
	})
}

func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return common.Storagef(err, "close")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.Record, error) {
	var (
		rec                  store.Record
		collection, typ, raw string
		created, updated     int64
	)
	if err := row.Scan(&collection, &rec.ID, &rec.Rev, &typ, &created, &updated, &raw); err != nil {
		return store.Record{}, err
	}
	rec.Collection = models.Collection(collection)
	rec.Type = models.DocType(typ)
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
	rec.Body = []byte(raw)
	return rec, nil
}
