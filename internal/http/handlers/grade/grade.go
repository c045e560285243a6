// Package grade contains the HTTP handlers for grades. A grade links one
// student to one subject with an integer score.
package grade

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

// payload keeps the score as a pointer so that 0 is accepted and a missing
// score is not.
type payload struct {
	StudentID string `json:"alumno_id"    validate:"required"`
	SubjectID string `json:"materia_id"   validate:"required"`
	Score     *int   `json:"calificacion" validate:"required"`
}

// New handles POST /grades/
// The student and the subject must both exist; the student is checked
// first.
func New(grades storage.Repository[types.Grade], refs *reference.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a grade")

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

		created, err := grades.Insert(r.Context(), types.Grade{
			StudentID: ids[0],
			SubjectID: ids[1],
			Score:     *p.Score,
		})
		if err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("grade created", slog.String("id", objectid.Encode(created.ID)))
		response.WriteJSON(w, http.StatusOK, created)
	}
}

// ByStudent handles GET /grades/student/{id}
func ByStudent(grades storage.Repository[types.Grade]) http.HandlerFunc {
	return listBy(grades, types.FieldStudentID)
}

// BySubject handles GET /grades/subject/{id}
func BySubject(grades storage.Repository[types.Grade]) http.HandlerFunc {
	return listBy(grades, types.FieldSubjectID)
}

// listBy lists the grades whose field equals the path id. The referenced
// document itself is not looked up: an unknown id yields [].
func listBy(grades storage.Repository[types.Grade], field string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("listing grades", slog.String(field, id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		list, err := grades.FindBy(r.Context(), field, oid)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, list)
	}
}

// Delete handles DELETE /grades/{id}
func Delete(grades storage.Repository[types.Grade]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting a grade", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := grades.Delete(r.Context(), oid); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Calificación eliminada")
	}
}
