// Package mongodb is the primary storage backend. Each collection maps onto a
// MongoDB collection of the same name; single-document writes rely on the
// server's own atomicity.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
)

const connectTimeout = 10 * time.Second

// Store wraps the process-wide client.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and checks the server answers a ping.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb.Connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb.Connect: ping: %w", err)
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Repos returns one repository per collection.
func (s *Store) Repos() *storage.Repos {
	return &storage.Repos{
		Students:    newCollection[types.Student](s.db.Collection(string(storage.Students)), storage.Students),
		Teachers:    newCollection[types.Teacher](s.db.Collection(string(storage.Teachers)), storage.Teachers),
		Subjects:    newCollection[types.Subject](s.db.Collection(string(storage.Subjects)), storage.Subjects),
		Grades:      newCollection[types.Grade](s.db.Collection(string(storage.Grades)), storage.Grades),
		Enrollments: newCollection[types.Enrollment](s.db.Collection(string(storage.Enrollments)), storage.Enrollments),
		Ping: func(ctx context.Context) error {
			return s.client.Ping(ctx, nil)
		},
		Close: s.client.Disconnect,
	}
}

type collection[T storage.Document[T]] struct {
	coll *mongo.Collection
	kind storage.Kind
}

func newCollection[T storage.Document[T]](coll *mongo.Collection, kind storage.Kind) *collection[T] {
	return &collection[T]{coll: coll, kind: kind}
}

func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	return c.find(ctx, "List", bson.D{})
}

func (c *collection[T]) Get(ctx context.Context, id primitive.ObjectID) (T, error) {
	var doc T
	err := c.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return doc, c.kind.Missing()
		}
		return doc, fmt.Errorf("Get: %w", err)
	}
	return doc, nil
}

func (c *collection[T]) Insert(ctx context.Context, doc T) (T, error) {
	doc = doc.WithID(primitive.NewObjectID())
	if _, err := c.coll.InsertOne(ctx, doc); err != nil {
		return doc, fmt.Errorf("Insert: %w", err)
	}
	return doc, nil
}

func (c *collection[T]) Update(ctx context.Context, id primitive.ObjectID, doc T) error {
	res, err := c.coll.ReplaceOne(ctx, bson.M{"_id": id}, doc.WithID(id))
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if res.MatchedCount == 0 {
		return c.kind.Missing()
	}
	return nil
}

func (c *collection[T]) Apply(ctx context.Context, id primitive.ObjectID, change storage.Change) error {
	update := bson.M{}
	if len(change.Set) > 0 {
		update["$set"] = bson.M(change.Set)
	}
	if len(change.Push) > 0 {
		update["$push"] = bson.M(change.Push)
	}
	if len(update) == 0 {
		_, err := c.Get(ctx, id)
		return err
	}

	res, err := c.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("Apply: %w", err)
	}
	if res.MatchedCount == 0 {
		return c.kind.Missing()
	}
	return nil
}

func (c *collection[T]) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if res.DeletedCount == 0 {
		return c.kind.Missing()
	}
	return nil
}

func (c *collection[T]) FindBy(ctx context.Context, field string, ref primitive.ObjectID) ([]T, error) {
	return c.find(ctx, "FindBy", bson.M{field: ref})
}

func (c *collection[T]) find(ctx context.Context, op string, filter any) ([]T, error) {
	cursor, err := c.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: find: %w", op, err)
	}

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}
	return docs, nil
}
