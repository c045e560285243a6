// Package teacher contains the HTTP handlers for the Teacher resource.
package teacher

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
	"github.com/upiiz/school-records-api/internal/utils/request"
	"github.com/upiiz/school-records-api/internal/utils/response"
)

// payload is the body of POST and PUT. Subject ids arrive as hex strings
// and are decoded before anything is stored.
type payload struct {
	Name      string   `json:"nombre"           validate:"required"`
	Surname   string   `json:"apellido"         validate:"required"`
	BirthDate string   `json:"fecha_nacimiento" validate:"required"`
	Address   string   `json:"direccion"        validate:"required"`
	Specialty string   `json:"especialidad"     validate:"required"`
	Subjects  []string `json:"materias"`
}

func (p payload) teacher() (types.Teacher, error) {
	subjects, err := objectid.DecodeAll(p.Subjects)
	if err != nil {
		return types.Teacher{}, err
	}
	return types.Teacher{
		Name:      p.Name,
		Surname:   p.Surname,
		BirthDate: p.BirthDate,
		Address:   p.Address,
		Specialty: p.Specialty,
		Subjects:  subjects,
	}, nil
}

func decode(r *http.Request) (types.Teacher, error) {
	var p payload
	if err := request.DecodeJSON(r, &p); err != nil {
		return types.Teacher{}, err
	}
	return p.teacher()
}

// New handles POST /teachers/ and responds with the created teacher.
func New(teachers storage.Repository[types.Teacher]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a teacher")

		teacher, err := decode(r)
		if err != nil {
			response.Fail(w, err)
			return
		}

		created, err := teachers.Insert(r.Context(), teacher)
		if err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("teacher created", slog.String("id", objectid.Encode(created.ID)))
		response.WriteJSON(w, http.StatusOK, created)
	}
}

// GetList handles GET /teachers/
func GetList(teachers storage.Repository[types.Teacher]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all teachers")

		list, err := teachers.List(r.Context())
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, list)
	}
}

// GetByID handles GET /teachers/{id}
func GetByID(teachers storage.Repository[types.Teacher]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("getting a teacher", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		teacher, err := teachers.Get(r.Context(), oid)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, teacher)
	}
}

// Update handles PUT /teachers/{id}. Every field, materias included, is
// replaced.
func Update(teachers storage.Repository[types.Teacher]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("updating a teacher", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		teacher, err := decode(r)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := teachers.Update(r.Context(), oid, teacher); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Profesor actualizado")
	}
}

// Delete handles DELETE /teachers/{id}. Subjects that still name the
// teacher keep their profesor_id.
func Delete(teachers storage.Repository[types.Teacher]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting a teacher", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if err := teachers.Delete(r.Context(), oid); err != nil {
			response.Fail(w, err)
			return
		}
		response.Message(w, "Profesor eliminado")
	}
}
