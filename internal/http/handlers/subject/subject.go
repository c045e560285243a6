// Package subject contains the HTTP handlers for the Subject resource and
// for assigning a subject to a teacher.
package subject

import (
	"fmt"
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
	Name        string  `json:"nombre"      validate:"required"`
	Description string  `json:"descripcion" validate:"required"`
	TeacherID   *string `json:"profesor_id"`
}

// decode reads the body and, when profesor_id is set, checks the teacher
// exists.
func decode(r *http.Request, refs *reference.Checker) (types.Subject, error) {
	var p payload
	if err := request.DecodeJSON(r, &p); err != nil {
		return types.Subject{}, err
	}

	subject := types.Subject{Name: p.Name, Description: p.Description}
	if p.TeacherID != nil && *p.TeacherID != "" {
		ids, err := refs.Require(r.Context(), reference.Teacher(*p.TeacherID))
		if err != nil {
			return types.Subject{}, err
		}
		subject.TeacherID = &ids[0]
	}
	return subject, nil
}

// New handles POST /subjects/ and responds with the created subject.
func New(subjects storage.Repository[types.Subject], refs *reference.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a subject")

		subject, err := decode(r, refs)
		if err != nil {
			response.Fail(w, err)
			return
		}

		created, err := subjects.Insert(r.Context(), subject)
		if err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("subject created", slog.String("id", objectid.Encode(created.ID)))
		response.WriteJSON(w, http.StatusOK, created)
	}
}

// GetList handles GET /subjects/
func GetList(subjects storage.Repository[types.Subject]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all subjects")

		list, err := subjects.List(r.Context())
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, list)
	}
}

// GetByID handles GET /subjects/{id}
func GetByID(subjects storage.Repository[types.Subject]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("getting a subject", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		subject, err := subjects.Get(r.Context(), oid)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, subject)
	}
}

// Update handles PUT /subjects/{id}. Omitting profesor_id clears it.
func Update(subjects storage.Repository[types.Subject], refs *reference.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("updating a subject", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		subject, err := decode(r, refs)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := subjects.Update(r.Context(), oid, subject); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Materia actualizada")
	}
}

// Delete handles DELETE /subjects/{id}. Grades, enrollments and teacher
// materias lists that point at the subject are left as they are.
func Delete(subjects storage.Repository[types.Subject]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting a subject", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := subjects.Delete(r.Context(), oid); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Materia eliminada")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Assign handles POST /subjects/assign/?materia_id=...&profesor_id=...
//
// Both ids are decoded first, then the teacher and the subject are looked
// up in that order. On success the subject's profesor_id is set and the
// subject id is appended to the teacher's materias. The two writes are not
// atomic with each other; assigning twice appends the id twice.
// ─────────────────────────────────────────────────────────────────────────────
func Assign(repos *storage.Repos, refs *reference.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		subjectID, teacherID := query.Get("materia_id"), query.Get("profesor_id")
		slog.Info("assigning a subject",
			slog.String("subject", subjectID),
			slog.String("teacher", teacherID))

		for _, name := range []string{"materia_id", "profesor_id"} {
			if !query.Has(name) {
				response.Fail(w, fmt.Errorf("%w: missing query parameter %s", request.ErrUnprocessable, name))
				return
			}
		}

		ids, err := refs.Require(r.Context(),
			reference.Teacher(teacherID),
			reference.Subject(subjectID))
		if err != nil {
			response.Fail(w, err)
			return
		}
		teacherOID, subjectOID := ids[0], ids[1]

		ctx := r.Context()
		err = repos.Subjects.Apply(ctx, subjectOID, storage.Change{
			Set: map[string]any{types.FieldTeacherID: teacherOID},
		})
		if err != nil {
			response.Fail(w, err)
			return
		}

		err = repos.Teachers.Apply(ctx, teacherOID, storage.Change{
			Push: map[string]any{types.FieldSubjects: subjectOID},
		})
		if err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("subject assigned",
			slog.String("subject", subjectID),
			slog.String("teacher", teacherID))
		response.Message(w, "Materia asignada al profesor")
	}
}
