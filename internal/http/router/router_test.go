package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/upiiz/school-records-api/internal/attachment"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/storage/bolt"
	"github.com/upiiz/school-records-api/internal/types"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// countingBackend records how often the bucket is touched.
type countingBackend struct {
	*attachment.Memory
	puts, deletes int
}

func (c *countingBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	c.puts++
	return c.Memory.Put(ctx, key, data, contentType)
}

func (c *countingBackend) Delete(ctx context.Context, key string) error {
	c.deletes++
	return c.Memory.Delete(ctx, key)
}

// brokenStudents fails every insert.
type brokenStudents struct {
	storage.Repository[types.Student]
}

func (brokenStudents) Insert(context.Context, types.Student) (types.Student, error) {
	return types.Student{}, errors.New("disk full")
}

type fixture struct {
	t       *testing.T
	repos   *storage.Repos
	bucket  *countingBackend
	handler http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	repos := store.Repos()
	t.Cleanup(func() { repos.Close(context.Background()) })

	f := &fixture{t: t, repos: repos, bucket: &countingBackend{Memory: attachment.NewMemory()}}
	f.rebuild()
	return f
}

func (f *fixture) rebuild() {
	photos := attachment.New(f.bucket, "sd-upiiz", "s3.amazonaws.com", "Alumnos")
	f.handler = New(f.repos, photos)
}

func (f *fixture) do(method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	f.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) json(method, target, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(method, target, strings.NewReader(body), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["error"]
}

func messageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, rec)["message"]
}

func studentForm(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{
		"nombre":           "Ana",
		"apellido":         "López",
		"fecha_nacimiento": "2004-05-01",
		"direccion":        "Calle 1",
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

const studentJSON = `{"nombre":"Ana","apellido":"López","fecha_nacimiento":"2004-05-01","direccion":"Calle 1"}`

func (f *fixture) createStudent() types.Student {
	f.t.Helper()
	rec := f.json("POST", "/students/", studentJSON)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[types.Student](f.t, rec)
}

func (f *fixture) createSubject() types.Subject {
	f.t.Helper()
	rec := f.json("POST", "/subjects/", `{"nombre":"Redes","descripcion":"Redes de computadoras"}`)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[types.Subject](f.t, rec)
}

func (f *fixture) createTeacher() types.Teacher {
	f.t.Helper()
	rec := f.json("POST", "/teachers/", `{"nombre":"Luis","apellido":"Pérez","fecha_nacimiento":"1980-01-01","direccion":"Calle 2","especialidad":"Redes"}`)
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[types.Teacher](f.t, rec)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do("GET", "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListsStartEmpty(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/students/", "/teachers", "/subjects/"} {
		rec := f.do("GET", path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}

func TestStudentLifecycle(t *testing.T) {
	f := newFixture(t)
	created := f.createStudent()

	assert.False(t, created.ID.IsZero())
	assert.Nil(t, created.Photo)
	assert.Zero(t, f.bucket.puts)

	id := created.ID.Hex()

	rec := f.do("GET", "/students/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created, decode[types.Student](t, rec))

	rec = f.json("PUT", "/students/"+id, `{"nombre":"Ana María","apellido":"López","fecha_nacimiento":"2004-05-01","direccion":"Calle 3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Alumno actualizado", messageOf(t, rec))

	rec = f.do("GET", "/students/"+id, nil, "")
	assert.Equal(t, "Ana María", decode[types.Student](t, rec).Name)

	rec = f.do("DELETE", "/students/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "El alumno y su foto han sido eliminados", messageOf(t, rec))
	assert.Zero(t, f.bucket.deletes, "no photo, no storage call")

	rec = f.do("GET", "/students/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Alumno no encontrado", errorOf(t, rec))
}

func TestStudentWithPhoto(t *testing.T) {
	f := newFixture(t)

	body, contentType := studentForm(t, "ana.png", pngHeader)
	rec := f.do("POST", "/students/", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	created := decode[types.Student](t, rec)
	require.NotNil(t, created.Photo)
	assert.Equal(t, "https://sd-upiiz.s3.amazonaws.com/Alumnos/ana.png", *created.Photo)

	obj, ok := f.bucket.Get("Alumnos/ana.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)

	// updates keep the photo
	rec = f.json("PUT", "/students/"+created.ID.Hex(), studentJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := f.repos.Students.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Photo, got.Photo)

	rec = f.do("DELETE", "/students/"+created.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.bucket.deletes)
	assert.Zero(t, f.bucket.Len())
}

func TestStudentDeleteToleratesMissingPhoto(t *testing.T) {
	f := newFixture(t)

	photo := "https://sd-upiiz.s3.amazonaws.com/Alumnos/gone.png"
	created, err := f.repos.Students.Insert(context.Background(), types.Student{
		Name: "Ana", Surname: "López", BirthDate: "2004-05-01", Address: "Calle 1", Photo: &photo,
	})
	require.NoError(t, err)

	rec := f.do("DELETE", "/students/"+created.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err = f.repos.Students.Get(context.Background(), created.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStudentRejectsNonImage(t *testing.T) {
	f := newFixture(t)

	body, contentType := studentForm(t, "notes.txt", []byte("plain text"))
	rec := f.do("POST", "/students/", body, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "El archivo debe ser una imagen.", errorOf(t, rec))

	list, err := f.repos.Students.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, f.bucket.Len())
}

func TestStudentPhotoDiscardedWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.repos.Students = brokenStudents{f.repos.Students}
	f.rebuild()

	body, contentType := studentForm(t, "ana.png", pngHeader)
	rec := f.do("POST", "/students/", body, contentType)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	assert.Equal(t, 1, f.bucket.puts)
	assert.Equal(t, 1, f.bucket.deletes)
	assert.Zero(t, f.bucket.Len())
}

func TestStudentValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.json("POST", "/students/", `{"nombre":"Ana"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, errorOf(t, rec), "field apellido is required")

	rec = f.json("POST", "/students/", "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestInvalidIdentifiers(t *testing.T) {
	f := newFixture(t)

	for _, target := range []string{
		"/students/123",
		"/teachers/xyz",
		"/subjects/not-an-id",
		"/grades/student/zzz",
		"/enrollments/subject/zzz",
	} {
		rec := f.do("GET", target, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := f.do("DELETE", "/grades/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeacherLifecycle(t *testing.T) {
	f := newFixture(t)
	created := f.createTeacher()

	assert.NotNil(t, created.Subjects)
	assert.Empty(t, created.Subjects)

	id := created.ID.Hex()
	subjectID := primitive.NewObjectID().Hex()

	rec := f.json("PUT", "/teachers/"+id, `{"nombre":"Luis","apellido":"Pérez","fecha_nacimiento":"1980-01-01","direccion":"Calle 2","especialidad":"Bases de datos","materias":["`+subjectID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Profesor actualizado", messageOf(t, rec))

	rec = f.do("GET", "/teachers/"+id, nil, "")
	got := decode[types.Teacher](t, rec)
	assert.Equal(t, "Bases de datos", got.Specialty)
	require.Len(t, got.Subjects, 1)
	assert.Equal(t, subjectID, got.Subjects[0].Hex())

	rec = f.json("PUT", "/teachers/"+id, `{"nombre":"Luis","apellido":"Pérez","fecha_nacimiento":"1980-01-01","direccion":"Calle 2","especialidad":"Redes","materias":["bad"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("DELETE", "/teachers/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Profesor eliminado", messageOf(t, rec))

	rec = f.do("DELETE", "/teachers/"+id, nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profesor no encontrado", errorOf(t, rec))
}

func TestSubjectCreateHasNoTeacher(t *testing.T) {
	f := newFixture(t)

	rec := f.json("POST", "/subjects/", `{"nombre":"Redes","descripcion":"Redes de computadoras"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Contains(t, body, "profesor_id")
	assert.Nil(t, body["profesor_id"])
	assert.Equal(t, "Redes", body["nombre"])
}

func TestSubjectTeacherMustExist(t *testing.T) {
	f := newFixture(t)
	subj := f.createSubject()

	missing := primitive.NewObjectID().Hex()
	rec := f.json("PUT", "/subjects/"+subj.ID.Hex(), `{"nombre":"Redes","descripcion":"x","profesor_id":"`+missing+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profesor no encontrado", errorOf(t, rec))

	teacher := f.createTeacher()
	rec = f.json("PUT", "/subjects/"+subj.ID.Hex(), `{"nombre":"Redes","descripcion":"x","profesor_id":"`+teacher.ID.Hex()+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Materia actualizada", messageOf(t, rec))

	rec = f.do("DELETE", "/subjects/"+subj.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Materia eliminada", messageOf(t, rec))
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	subj := f.createSubject()
	teacher := f.createTeacher()

	rec := f.do("POST", "/subjects/assign/?materia_id="+subj.ID.Hex()+"&profesor_id="+teacher.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Materia asignada al profesor", messageOf(t, rec))

	gotSubject, err := f.repos.Subjects.Get(context.Background(), subj.ID)
	require.NoError(t, err)
	require.NotNil(t, gotSubject.TeacherID)
	assert.Equal(t, teacher.ID, *gotSubject.TeacherID)

	gotTeacher, err := f.repos.Teachers.Get(context.Background(), teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{subj.ID}, gotTeacher.Subjects)
}

func TestAssignFailures(t *testing.T) {
	f := newFixture(t)
	subj := f.createSubject()

	rec := f.do("POST", "/subjects/assign?materia_id=bad&profesor_id=bad", nil, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("POST", "/subjects/assign?materia_id="+subj.ID.Hex()+"&profesor_id="+primitive.NewObjectID().Hex(), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Profesor no encontrado", errorOf(t, rec))

	teacher := f.createTeacher()
	rec = f.do("POST", "/subjects/assign?materia_id="+primitive.NewObjectID().Hex()+"&profesor_id="+teacher.ID.Hex(), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Materia no encontrada", errorOf(t, rec))

	rec = f.do("POST", "/subjects/assign?materia_id="+subj.ID.Hex(), nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestGrades(t *testing.T) {
	f := newFixture(t)
	student := f.createStudent()
	subj := f.createSubject()

	body := `{"alumno_id":"` + student.ID.Hex() + `","materia_id":"` + subj.ID.Hex() + `","calificacion":0}`
	rec := f.json("POST", "/grades/", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	created := decode[types.Grade](t, rec)
	assert.Equal(t, student.ID, created.StudentID)
	assert.Zero(t, created.Score)

	rec = f.json("POST", "/grades/", `{"alumno_id":"`+student.ID.Hex()+`","materia_id":"`+subj.ID.Hex()+`","calificacion":9}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("GET", "/grades/student/"+student.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]types.Grade](t, rec), 2)

	rec = f.do("GET", "/grades/subject/"+primitive.NewObjectID().Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do("DELETE", "/grades/"+created.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Calificación eliminada", messageOf(t, rec))

	rec = f.do("DELETE", "/grades/"+created.ID.Hex(), nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Calificación no encontrada", errorOf(t, rec))
}

func TestGradeReferences(t *testing.T) {
	f := newFixture(t)
	student := f.createStudent()
	subj := f.createSubject()
	missing := primitive.NewObjectID().Hex()

	rec := f.json("POST", "/grades/", `{"alumno_id":"`+missing+`","materia_id":"`+missing+`","calificacion":8}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Alumno no encontrado", errorOf(t, rec))

	rec = f.json("POST", "/grades/", `{"alumno_id":"`+student.ID.Hex()+`","materia_id":"`+missing+`","calificacion":8}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Materia no encontrada", errorOf(t, rec))

	rec = f.json("POST", "/grades/", `{"alumno_id":"`+student.ID.Hex()+`","materia_id":"`+subj.ID.Hex()+`"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	grades, err := f.repos.Grades.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestEnrollments(t *testing.T) {
	f := newFixture(t)
	student := f.createStudent()
	subj := f.createSubject()

	body := `{"alumno_id":"` + student.ID.Hex() + `","materia_id":"` + subj.ID.Hex() + `"}`
	for i := 0; i < 2; i++ {
		rec := f.json("POST", "/enrollments/", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Alumno inscrito en la materia", messageOf(t, rec))
	}

	rec := f.do("GET", "/enrollments/subject/"+subj.ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]types.Enrollment](t, rec)
	require.Len(t, list, 2)

	rec = f.do("DELETE", "/enrollments/"+list[0].ID.Hex(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Inscripción eliminada", messageOf(t, rec))

	rec = f.do("GET", "/enrollments/student/"+student.ID.Hex(), nil, "")
	assert.Len(t, decode[[]types.Enrollment](t, rec), 1)

	rec = f.json("POST", "/enrollments/", `{"alumno_id":"`+primitive.NewObjectID().Hex()+`","materia_id":"`+subj.ID.Hex()+`"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Alumno no encontrado", errorOf(t, rec))
}
