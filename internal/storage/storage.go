// Package storage defines the contract every database backend must satisfy.
//
// Handlers never talk to MongoDB, SQLite or bbolt directly. They receive a
// *Repos built by one of the backends in main and only use the
// Repository methods, so a backend can be swapped by changing one line.
package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/types"
)

// ErrNotFound is wrapped by every "no such document" failure.
var ErrNotFound = errors.New("document not found")

// Kind names a collection. Its value is the collection (or bucket, or
// SQLite partition) name.
type Kind string

const (
	Students    Kind = "alumnos"
	Teachers    Kind = "profesores"
	Subjects    Kind = "materias"
	Grades      Kind = "calificaciones"
	Enrollments Kind = "inscripciones"
)

// Kinds lists every collection, in the order backends create them.
var Kinds = []Kind{Students, Teachers, Subjects, Grades, Enrollments}

// NotFoundError reports a missing document of a given kind. Its message is
// the one shown to API clients.
type NotFoundError struct {
	Kind Kind
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case Students:
		return "Alumno no encontrado"
	case Teachers:
		return "Profesor no encontrado"
	case Subjects:
		return "Materia no encontrada"
	case Grades:
		return "Calificación no encontrada"
	case Enrollments:
		return "Inscripción no encontrada"
	}
	return "Documento no encontrado"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Missing returns the NotFoundError for k.
func (k Kind) Missing() error { return &NotFoundError{Kind: k} }

// Document is satisfied by every type in package types. WithID returns a
// copy carrying the given identifier.
type Document[T any] interface {
	DocumentID() primitive.ObjectID
	WithID(id primitive.ObjectID) T
}

// Change is a partial update applied atomically to one document. Set
// replaces fields; Push appends one value to an array field, creating the
// array when the field is missing or null.
type Change struct {
	Set  map[string]any
	Push map[string]any
}

// Repository is the per-collection contract.
type Repository[T Document[T]] interface {
	// List returns every document of the collection. The slice is never
	// nil; order is backend specific.
	List(ctx context.Context) ([]T, error)

	// Get looks a document up by primary key. A miss yields a
	// *NotFoundError.
	Get(ctx context.Context, id primitive.ObjectID) (T, error)

	// Insert assigns a fresh identifier, stores the document and returns
	// it with the identifier attached.
	Insert(ctx context.Context, doc T) (T, error)

	// Update replaces every field of the document with id.
	Update(ctx context.Context, id primitive.ObjectID, doc T) error

	// Apply performs a partial update on the document with id.
	Apply(ctx context.Context, id primitive.ObjectID, change Change) error

	// Delete removes the document with id. Removing nothing is a
	// *NotFoundError, never a silent success.
	Delete(ctx context.Context, id primitive.ObjectID) error

	// FindBy returns every document whose field holds the given reference.
	FindBy(ctx context.Context, field string, ref primitive.ObjectID) ([]T, error)
}

// Repos bundles one repository per collection. Backends build it once at
// startup; it is safe for concurrent use.
type Repos struct {
	Students    Repository[types.Student]
	Teachers    Repository[types.Teacher]
	Subjects    Repository[types.Subject]
	Grades      Repository[types.Grade]
	Enrollments Repository[types.Enrollment]

	// Ping checks the backend is reachable.
	Ping func(ctx context.Context) error

	// Close releases the backend's resources.
	Close func(ctx context.Context) error
}
