// Package bolt stores documents in a bbolt file, one bucket per collection.
// Keys are the document's ObjectID bytes, values its JSON encoding. Since
// ObjectIDs start with a timestamp, List returns documents roughly in
// insertion order.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
)

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the file at path and makes sure every collection
// bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("bolt.Open: mkdir: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, kind := range storage.Kinds {
			if _, err := tx.CreateBucketIfNotExists([]byte(kind)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt.Open: create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Repos returns one repository per bucket.
func (s *Store) Repos() *storage.Repos {
	return &storage.Repos{
		Students:    newCollection[types.Student](s.db, storage.Students),
		Teachers:    newCollection[types.Teacher](s.db, storage.Teachers),
		Subjects:    newCollection[types.Subject](s.db, storage.Subjects),
		Grades:      newCollection[types.Grade](s.db, storage.Grades),
		Enrollments: newCollection[types.Enrollment](s.db, storage.Enrollments),
		Ping: func(context.Context) error {
			return s.db.View(func(*bbolt.Tx) error { return nil })
		},
		Close: func(context.Context) error { return s.Close() },
	}
}

type collection[T storage.Document[T]] struct {
	db   *bbolt.DB
	kind storage.Kind
}

func newCollection[T storage.Document[T]](db *bbolt.DB, kind storage.Kind) *collection[T] {
	return &collection[T]{db: db, kind: kind}
}

func (c *collection[T]) bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(c.kind))
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found", c.kind)
	}
	return b, nil
}

func (c *collection[T]) List(_ context.Context) ([]T, error) {
	return c.scan(func([]byte) (bool, error) { return true, nil })
}

func (c *collection[T]) Get(_ context.Context, id primitive.ObjectID) (T, error) {
	var out T
	err := c.db.View(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		v := b.Get(id[:])
		if v == nil {
			return c.kind.Missing()
		}
		return json.Unmarshal(v, &out)
	})
	return out, err
}

func (c *collection[T]) Insert(_ context.Context, doc T) (T, error) {
	doc = doc.WithID(primitive.NewObjectID())
	id := doc.DocumentID()

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return b.Put(id[:], data)
	})
	if err != nil {
		return doc, fmt.Errorf("Insert: %w", err)
	}
	return doc, nil
}

func (c *collection[T]) Update(_ context.Context, id primitive.ObjectID, doc T) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		if b.Get(id[:]) == nil {
			return c.kind.Missing()
		}
		data, err := json.Marshal(doc.WithID(id))
		if err != nil {
			return err
		}
		return b.Put(id[:], data)
	})
}

func (c *collection[T]) Apply(_ context.Context, id primitive.ObjectID, change storage.Change) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		v := b.Get(id[:])
		if v == nil {
			return c.kind.Missing()
		}
		patched, err := storage.ApplyJSON(v, change)
		if err != nil {
			return err
		}
		return b.Put(id[:], patched)
	})
}

func (c *collection[T]) Delete(_ context.Context, id primitive.ObjectID) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		if b.Get(id[:]) == nil {
			return c.kind.Missing()
		}
		return b.Delete(id[:])
	})
}

func (c *collection[T]) FindBy(_ context.Context, field string, ref primitive.ObjectID) ([]T, error) {
	return c.scan(func(v []byte) (bool, error) {
		return storage.MatchesJSON(v, field, ref)
	})
}

// scan decodes every value accepted by keep.
func (c *collection[T]) scan(keep func(v []byte) (bool, error)) ([]T, error) {
	out := make([]T, 0)
	err := c.db.View(func(tx *bbolt.Tx) error {
		b, err := c.bucket(tx)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			ok, err := keep(v)
			if err != nil || !ok {
				return err
			}
			var doc T
			if err := json.Unmarshal(v, &doc); err != nil {
				return err
			}
			out = append(out, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
