// Package reference checks that the documents a write points at exist.
//
// Nothing here is transactional: a referenced document deleted between the
// check and the write leaves a dangling reference.
package reference

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/storage"
)

// Ref is an external identifier that must name an existing document of Kind.
type Ref struct {
	Kind storage.Kind
	ID   string
}

func Student(id string) Ref { return Ref{Kind: storage.Students, ID: id} }
func Subject(id string) Ref { return Ref{Kind: storage.Subjects, ID: id} }
func Teacher(id string) Ref { return Ref{Kind: storage.Teachers, ID: id} }

type lookup func(ctx context.Context, id primitive.ObjectID) error

type Checker struct {
	lookups map[storage.Kind]lookup
}

func New(repos *storage.Repos) *Checker {
	return &Checker{lookups: map[storage.Kind]lookup{
		storage.Students: func(ctx context.Context, id primitive.ObjectID) error {
			_, err := repos.Students.Get(ctx, id)
			return err
		},
		storage.Subjects: func(ctx context.Context, id primitive.ObjectID) error {
			_, err := repos.Subjects.Get(ctx, id)
			return err
		},
		storage.Teachers: func(ctx context.Context, id primitive.ObjectID) error {
			_, err := repos.Teachers.Get(ctx, id)
			return err
		},
	}}
}

// Require decodes every ref, then confirms each exists in order. It returns
// the decoded identifiers in the order given.
//
// A malformed identifier fails with objectid.ErrInvalid before any lookup;
// the first missing document fails with its kind's *storage.NotFoundError.
func (c *Checker) Require(ctx context.Context, refs ...Ref) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, len(refs))
	for i, ref := range refs {
		id, err := objectid.Decode(ref.ID)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}

	for i, ref := range refs {
		find, ok := c.lookups[ref.Kind]
		if !ok {
			return nil, fmt.Errorf("reference: no lookup for %q", ref.Kind)
		}
		if err := find(ctx, ids[i]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}
