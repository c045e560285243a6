// Package enrollment contains the HTTP handlers that enroll students in
// subjects.
package enrollment

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/reference"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
	"github.com/upiiz/school-records-api/internal/utils/request"
	"github.com/upiiz/school-records-api/internal/utils/response"
)

type payload struct {
	StudentID string `json:"alumno_id"  validate:"required"`
	SubjectID string `json:"materia_id" validate:"required"`
}

// New handles POST /enrollments/
// Enrolling the same student twice in a subject creates a second record.
func New(enrollments storage.Repository[types.Enrollment], refs *reference.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("enrolling a student")

		var p payload
		if err := request.DecodeJSON(r, &p); err != nil {
			response.Fail(w, err)
			return
		}

		ids, err := refs.Require(r.Context(),
			reference.Student(p.StudentID),
			reference.Subject(p.SubjectID))
		if err != nil {
			response.Fail(w, err)
			return
		}

		created, err := enrollments.Insert(r.Context(), types.Enrollment{
			StudentID: ids[0],
			SubjectID: ids[1],
		})
		if err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("student enrolled",
			slog.String("id", objectid.Encode(created.ID)),
			slog.String("student", p.StudentID),
			slog.String("subject", p.SubjectID))
		response.Message(w, "Alumno inscrito en la materia")
	}
}

// ByStudent handles GET /enrollments/student/{id}
func ByStudent(enrollments storage.Repository[types.Enrollment]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list(w, r, enrollments, types.FieldStudentID)
	}
}

// BySubject handles GET /enrollments/subject/{id}
func BySubject(enrollments storage.Repository[types.Enrollment]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list(w, r, enrollments, types.FieldSubjectID)
	}
}

func list(w http.ResponseWriter, r *http.Request, enrollments storage.Repository[types.Enrollment], field string) {
	id := chi.URLParam(r, "id")
	slog.Info("listing enrollments", slog.String(field, id))

	oid, err := objectid.Decode(id)
	if err != nil {
		response.Fail(w, err)
		return
	}

	found, err := enrollments.FindBy(r.Context(), field, oid)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, found)
}

// Delete handles DELETE /enrollments/{id}
func Delete(enrollments storage.Repository[types.Enrollment]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting an enrollment", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := enrollments.Delete(r.Context(), oid); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Inscripción eliminada")
	}
}
