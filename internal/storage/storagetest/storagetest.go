// Package storagetest holds the behaviour every storage backend must show.
// Backend packages call Run from their own tests with a fresh *storage.Repos.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
)

// Run exercises open's repositories. open must return an empty store.
func Run(t *testing.T, open func(t *testing.T) *storage.Repos) {
	t.Run("InsertThenGet", func(t *testing.T) { testInsertThenGet(t, open(t)) })
	t.Run("ListEmptyIsNotNil", func(t *testing.T) { testListEmpty(t, open(t)) })
	t.Run("List", func(t *testing.T) { testList(t, open(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, open(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, open(t)) })
	t.Run("FindBy", func(t *testing.T) { testFindBy(t, open(t)) })
	t.Run("Apply", func(t *testing.T) { testApply(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, open(t).Ping(context.Background())) })
}

func photo(s string) *string { return &s }

func testInsertThenGet(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	in := types.Student{
		Name:      "Ana",
		Surname:   "López",
		BirthDate: "2004-05-01",
		Address:   "Calle 1",
		Photo:     photo("https://sd-upiiz.s3.amazonaws.com/Alumnos/ana.png"),
	}

	created, err := repos.Students.Insert(ctx, in)
	require.NoError(t, err)
	require.False(t, created.ID.IsZero())

	got, err := repos.Students.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.WithID(created.ID), got)

	_, err = repos.Students.Get(ctx, primitive.NewObjectID())
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.EqualError(t, err, "Alumno no encontrado")
}

func testListEmpty(t *testing.T, repos *storage.Repos) {
	subjects, err := repos.Subjects.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subjects)
	assert.Empty(t, subjects)
}

func testList(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	want := map[primitive.ObjectID]types.Teacher{}
	for _, name := range []string{"Ada", "Alan", "Grace"} {
		teacher, err := repos.Teachers.Insert(ctx, types.Teacher{
			Name:      name,
			Specialty: "Computación",
			Subjects:  []primitive.ObjectID{},
		})
		require.NoError(t, err)
		want[teacher.ID] = teacher
	}

	teachers, err := repos.Teachers.List(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, len(want))
	for _, teacher := range teachers {
		assert.Equal(t, want[teacher.ID], teacher)
	}
}

func testUpdate(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	subject, err := repos.Subjects.Insert(ctx, types.Subject{Name: "Math", Description: "Algebra"})
	require.NoError(t, err)

	changed := types.Subject{Name: "Math II", Description: "Calculus"}
	require.NoError(t, repos.Subjects.Update(ctx, subject.ID, changed))

	got, err := repos.Subjects.Get(ctx, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, changed.WithID(subject.ID), got)

	err = repos.Subjects.Update(ctx, primitive.NewObjectID(), changed)
	require.ErrorIs(t, err, storage.ErrNotFound)
	assert.EqualError(t, err, "Materia no encontrada")
}

func testDelete(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	grade, err := repos.Grades.Insert(ctx, types.Grade{
		StudentID: primitive.NewObjectID(),
		SubjectID: primitive.NewObjectID(),
		Score:     8,
	})
	require.NoError(t, err)

	require.NoError(t, repos.Grades.Delete(ctx, grade.ID))

	_, err = repos.Grades.Get(ctx, grade.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)

	// deleting twice, or deleting something that never existed, is a miss
	require.ErrorIs(t, repos.Grades.Delete(ctx, grade.ID), storage.ErrNotFound)
	require.ErrorIs(t, repos.Grades.Delete(ctx, primitive.NewObjectID()), storage.ErrNotFound)
}

func testFindBy(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	ana, bob := primitive.NewObjectID(), primitive.NewObjectID()
	math, art := primitive.NewObjectID(), primitive.NewObjectID()

	for _, e := range []types.Enrollment{
		{StudentID: ana, SubjectID: math},
		{StudentID: ana, SubjectID: math}, // duplicates are allowed
		{StudentID: ana, SubjectID: art},
		{StudentID: bob, SubjectID: math},
	} {
		_, err := repos.Enrollments.Insert(ctx, e)
		require.NoError(t, err)
	}

	byAna, err := repos.Enrollments.FindBy(ctx, types.FieldStudentID, ana)
	require.NoError(t, err)
	assert.Len(t, byAna, 3)
	for _, e := range byAna {
		assert.Equal(t, ana, e.StudentID)
	}

	byMath, err := repos.Enrollments.FindBy(ctx, types.FieldSubjectID, math)
	require.NoError(t, err)
	assert.Len(t, byMath, 3)

	none, err := repos.Enrollments.FindBy(ctx, types.FieldSubjectID, primitive.NewObjectID())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testApply(t *testing.T, repos *storage.Repos) {
	ctx := context.Background()

	teacher, err := repos.Teachers.Insert(ctx, types.Teacher{Name: "Ada", Subjects: []primitive.ObjectID{}})
	require.NoError(t, err)
	subject, err := repos.Subjects.Insert(ctx, types.Subject{Name: "Math"})
	require.NoError(t, err)

	require.NoError(t, repos.Subjects.Apply(ctx, subject.ID, storage.Change{
		Set: map[string]any{types.FieldTeacherID: teacher.ID},
	}))
	require.NoError(t, repos.Teachers.Apply(ctx, teacher.ID, storage.Change{
		Push: map[string]any{types.FieldSubjects: subject.ID},
	}))

	gotSubject, err := repos.Subjects.Get(ctx, subject.ID)
	require.NoError(t, err)
	require.NotNil(t, gotSubject.TeacherID)
	assert.Equal(t, teacher.ID, *gotSubject.TeacherID)
	assert.Equal(t, "Math", gotSubject.Name)

	gotTeacher, err := repos.Teachers.Get(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{subject.ID}, gotTeacher.Subjects)

	err = repos.Teachers.Apply(ctx, primitive.NewObjectID(), storage.Change{
		Push: map[string]any{types.FieldSubjects: subject.ID},
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}
