// Package sqlite provides a SQLite-backed implementation of the storage
// contract using Go's standard database/sql package.
//
// Every collection shares one table. A row holds the collection name, the
// document's ObjectID in hex and the document's JSON encoding; FindBy is
// answered with SQLite's built-in json_extract.
//
// The blank import below registers the sqlite3 driver with database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"

	// registers the "sqlite3" driver
	_ "github.com/mattn/go-sqlite3"
)

// SQLite holds a *sql.DB, a connection pool that is safe for concurrent use.
type SQLite struct {
	Db *sql.DB
}

// New opens the SQLite database at path and creates the documents table if
// it does not already exist.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: create table: %w", err)
	}

	return &SQLite{Db: db}, nil
}

// Repos returns one repository per collection, all sharing s.Db.
func (s *SQLite) Repos() *storage.Repos {
	return &storage.Repos{
		Students:    newCollection[types.Student](s.Db, storage.Students),
		Teachers:    newCollection[types.Teacher](s.Db, storage.Teachers),
		Subjects:    newCollection[types.Subject](s.Db, storage.Subjects),
		Grades:      newCollection[types.Grade](s.Db, storage.Grades),
		Enrollments: newCollection[types.Enrollment](s.Db, storage.Enrollments),
		Ping:        s.Db.PingContext,
		Close:       func(context.Context) error { return s.Db.Close() },
	}
}

type collection[T storage.Document[T]] struct {
	db   *sql.DB
	kind storage.Kind
}

func newCollection[T storage.Document[T]](db *sql.DB, kind storage.Kind) *collection[T] {
	return &collection[T]{db: db, kind: kind}
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	return c.query(ctx, "List",
		"SELECT body FROM documents WHERE collection = ? ORDER BY rowid",
		string(c.kind))
}

func (c *collection[T]) Get(ctx context.Context, id primitive.ObjectID) (T, error) {
	var doc T

	stmt, err := c.db.PrepareContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ? LIMIT 1",
	)
	if err != nil {
		return doc, fmt.Errorf("Get: prepare: %w", err)
	}
	defer stmt.Close()

	var body string
	err = stmt.QueryRowContext(ctx, string(c.kind), id.Hex()).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return doc, c.kind.Missing()
		}
		return doc, fmt.Errorf("Get: scan: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return doc, fmt.Errorf("Get: decode: %w", err)
	}
	return doc, nil
}

func (c *collection[T]) Insert(ctx context.Context, doc T) (T, error) {
	doc = doc.WithID(primitive.NewObjectID())

	body, err := json.Marshal(doc)
	if err != nil {
		return doc, fmt.Errorf("Insert: encode: %w", err)
	}

	stmt, err := c.db.PrepareContext(ctx,
		"INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)",
	)
	if err != nil {
		return doc, fmt.Errorf("Insert: prepare: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.ExecContext(ctx, string(c.kind), doc.DocumentID().Hex(), string(body)); err != nil {
		return doc, fmt.Errorf("Insert: exec: %w", err)
	}
	return doc, nil
}

func (c *collection[T]) Update(ctx context.Context, id primitive.ObjectID, doc T) error {
	body, err := json.Marshal(doc.WithID(id))
	if err != nil {
		return fmt.Errorf("Update: encode: %w", err)
	}
	return c.write(ctx, "Update",
		"UPDATE documents SET body = ? WHERE collection = ? AND id = ?",
		string(body), string(c.kind), id.Hex())
}

// Apply reads, patches and writes the document inside one transaction.
func (c *collection[T]) Apply(ctx context.Context, id primitive.ObjectID, change storage.Change) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Apply: begin: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx,
		"SELECT body FROM documents WHERE collection = ? AND id = ?",
		string(c.kind), id.Hex(),
	).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.kind.Missing()
		}
		return fmt.Errorf("Apply: scan: %w", err)
	}

	patched, err := storage.ApplyJSON([]byte(body), change)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET body = ? WHERE collection = ? AND id = ?",
		string(patched), string(c.kind), id.Hex(),
	); err != nil {
		return fmt.Errorf("Apply: exec: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Apply: commit: %w", err)
	}
	return nil
}

func (c *collection[T]) Delete(ctx context.Context, id primitive.ObjectID) error {
	return c.write(ctx, "Delete",
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		string(c.kind), id.Hex())
}

func (c *collection[T]) FindBy(ctx context.Context, field string, ref primitive.ObjectID) ([]T, error) {
	return c.query(ctx, "FindBy",
		"SELECT body FROM documents WHERE collection = ? AND json_extract(body, '$.' || ?) = ? ORDER BY rowid",
		string(c.kind), field, ref.Hex())
}

// write runs a single-row statement and reports a miss when nothing changed.
func (c *collection[T]) write(ctx context.Context, op, query string, args ...any) error {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return fmt.Errorf("%s: exec: %w", op, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return c.kind.Missing()
	}
	return nil
}

func (c *collection[T]) query(ctx context.Context, op, query string, args ...any) ([]T, error) {
	stmt, err := c.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", op, err)
	}
	defer rows.Close()

	docs := make([]T, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}

		var doc T
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iteration: %w", op, err)
	}
	return docs, nil
}
