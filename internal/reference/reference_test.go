package reference

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/storage/bolt"
	"github.com/upiiz/school-records-api/internal/types"
)

func newRepos(t *testing.T) *storage.Repos {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.Repos()
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	repos := newRepos(t)
	checker := New(repos)

	student, err := repos.Students.Insert(ctx, types.Student{Name: "Ana"})
	require.NoError(t, err)
	subject, err := repos.Subjects.Insert(ctx, types.Subject{Name: "Math"})
	require.NoError(t, err)
	missing := primitive.NewObjectID().Hex()

	t.Run("all present", func(t *testing.T) {
		ids, err := checker.Require(ctx, Student(student.ID.Hex()), Subject(subject.ID.Hex()))
		require.NoError(t, err)
		assert.Equal(t, []primitive.ObjectID{student.ID, subject.ID}, ids)
	})

	t.Run("missing student", func(t *testing.T) {
		_, err := checker.Require(ctx, Student(missing), Subject(subject.ID.Hex()))
		require.ErrorIs(t, err, storage.ErrNotFound)
		assert.EqualError(t, err, "Alumno no encontrado")
	})

	t.Run("first missing is reported", func(t *testing.T) {
		_, err := checker.Require(ctx, Teacher(missing), Subject(missing))
		assert.EqualError(t, err, "Profesor no encontrado")
	})

	t.Run("malformed wins over missing", func(t *testing.T) {
		_, err := checker.Require(ctx, Student(missing), Subject("bad"))
		require.ErrorIs(t, err, objectid.ErrInvalid)
	})
}
