// Package sqlstore is a docstore backend on a single "documents" table,
// for PostgreSQL (pgx) and SQLite (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ticketdesk/internal/server/docstore"
	"github.com/dmitrijs2005/ticketdesk/internal/server/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	dialect *Dialect
}

var _ docstore.Store = (*Store)(nil)

// New wraps an open database handle.
func New(db *sql.DB, dialect *Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to dsn with the dialect's driver and pings it.
func Open(ctx context.Context, dialect *Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore: open %s: %w", dialect.Name, err)
	}
	if dialect.singleConn {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("docstore: ping %s: %w", dialect.Name, err)
	}
	return New(db, dialect), nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(s.dialect.gooseDialect); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db, s.dialect.migrations); err != nil {
		return fmt.Errorf("docstore: migrate %s: %w", s.dialect.Name, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, path string, dst any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	var raw []byte
	err = s.db.QueryRowContext(ctx, s.dialect.get, p).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return sqlError(err)
	}
	return docstore.Decode(raw, dst)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	p, raw, err := prepare(path, value)
	if err != nil {
		return err
	}
	parent, _ := docstore.Split(p)
	if _, err := s.db.ExecContext(ctx, s.dialect.set, p, parent, string(raw)); err != nil {
		return sqlError(err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, path string, value any) error {
	p, raw, err := prepare(path, value)
	if err != nil {
		return err
	}
	parent, _ := docstore.Split(p)
	res, err := s.db.ExecContext(ctx, s.dialect.create, p, parent, string(raw))
	if err != nil {
		return sqlError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sqlError(err)
	}
	if n == 0 {
		return docstore.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	patch, err := docstore.EncodeFields(fields)
	if err != nil {
		return err
	}

	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.dialect.update, p, string(patch))
		if err != nil {
			return sqlError(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return sqlError(err)
		} else if n > 0 {
			return nil
		}
		return s.missOrNotObject(ctx, tx, p)
	})
}

func (s *Store) UpdateIf(ctx context.Context, path, field, expected string, fields map[string]any) (bool, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return false, err
	}
	if field == "" {
		return false, fmt.Errorf("docstore: empty condition field")
	}
	patch, err := docstore.EncodeFields(fields)
	if err != nil {
		return false, err
	}

	applied := false
	err = withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, s.dialect.updateIf, p, string(patch), s.dialect.fieldArg(field), expected)
		if err != nil {
			return sqlError(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return sqlError(err)
		}
		if n > 0 {
			applied = true
			return nil
		}
		var isObject bool
		err = tx.QueryRowContext(ctx, s.dialect.exists, p).Scan(&isObject)
		if errors.Is(err, sql.ErrNoRows) {
			return docstore.ErrNotFound
		}
		if err != nil {
			return sqlError(err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *Store) missOrNotObject(ctx context.Context, tx DBTX, p string) error {
	var isObject bool
	err := tx.QueryRowContext(ctx, s.dialect.exists, p).Scan(&isObject)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return sqlError(err)
	}
	if !isObject {
		return docstore.ErrNotObject
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.remove, p); err != nil {
		return sqlError(err)
	}
	return nil
}

func (s *Store) Push(ctx context.Context, parent string, value any) (string, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return "", err
	}
	key, err := docstore.NewPushKey()
	if err != nil {
		return "", err
	}
	if err := s.Create(ctx, docstore.Join(p, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) List(ctx context.Context, parent string) (map[string]json.RawMessage, error) {
	p, err := docstore.CleanPath(parent)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.dialect.list, p)
	if err != nil {
		return nil, sqlError(err)
	}
	defer rows.Close()

	out := make(map[string]json.RawMessage)
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, sqlError(err)
		}
		_, key := docstore.Split(path)
		out[key] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func prepare(path string, value any) (string, json.RawMessage, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return "", nil, err
	}
	raw, err := docstore.Encode(value)
	if err != nil {
		return "", nil, err
	}
	return p, raw, nil
}

func sqlError(err error) error {
	return fmt.Errorf("error performing sql request: %w", err)
}
