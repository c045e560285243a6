// Package student contains all HTTP handlers related to the Student resource.
//
// Handlers are built by factory functions that receive their dependencies
// and return the http.HandlerFunc the router needs:
//
//	r.Post("/", student.New(repos.Students, photos))
//	//           ^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
//	//  New(...) runs ONCE at startup; the returned func runs per request.
package student

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/upiiz/school-records-api/internal/attachment"
	"github.com/upiiz/school-records-api/internal/objectid"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/types"
	"github.com/upiiz/school-records-api/internal/utils/request"
	"github.com/upiiz/school-records-api/internal/utils/response"
)

// maxMemory is how much of a multipart body is kept in memory before
// spilling to temporary files.
const maxMemory = 32 << 20

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /students/
// Creates a student from either a JSON body or a multipart form whose
// optional "file" part is the student's photo.
//
// Request body (JSON):
//
//	{ "nombre": "Ana", "apellido": "López", "fecha_nacimiento": "2004-05-01", "direccion": "Calle 1" }
//
// Success response (200 OK): the created student, with "_id" and "foto".
//
// Error responses:
//
//	400 Bad Request    the file is not an image
//	403 Forbidden      no storage credentials
//	422 Unprocessable  malformed body or missing fields
//	500 Internal       storage or database error
//
// The photo is uploaded before the insert. If the insert then fails the
// photo is deleted again, so no object is left without its record.
// ─────────────────────────────────────────────────────────────────────────────
func New(students storage.Repository[types.Student], photos *attachment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")
		ctx := r.Context()

		student, upload, err := decode(r)
		if err != nil {
			response.Fail(w, err)
			return
		}
		if upload != nil {
			defer upload.Close()
		}

		// clients never set the photo URL directly
		student.Photo = nil

		var photoKey string
		if upload != nil {
			url, err := photos.Upload(ctx, upload, upload.contentType, upload.filename)
			if err != nil {
				response.Fail(w, err)
				return
			}
			photoKey = photos.Key(upload.filename)
			student.Photo = &url
		}

		created, err := students.Insert(ctx, student)
		if err != nil {
			if photoKey != "" {
				discardPhoto(ctx, photos, photoKey)
			}
			response.Fail(w, err)
			return
		}

		slog.Info("student created", slog.String("id", objectid.Encode(created.ID)))
		response.WriteJSON(w, http.StatusOK, created)
	}
}

// GetList handles GET /students/
// Returns every student; an empty collection yields [] rather than null.
func GetList(students storage.Repository[types.Student]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("getting all students")

		list, err := students.List(r.Context())
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, list)
	}
}

// GetByID handles GET /students/{id}
//
//	400 Bad Request  id is not a valid ObjectID
//	404 Not Found    "Alumno no encontrado"
func GetByID(students storage.Repository[types.Student]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("getting a student", slog.String("id", id))

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		student, err := students.Get(r.Context(), oid)
		if err != nil {
			response.Fail(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, student)
	}
}

// Update handles PUT /students/{id}
// Replaces the student's fields from a JSON body. The stored photo is kept.
func Update(students storage.Repository[types.Student]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("updating a student", slog.String("id", id))
		ctx := r.Context()

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		var student types.Student
		if err := request.DecodeJSON(r, &student); err != nil {
			response.Fail(w, err)
			return
		}

		current, err := students.Get(ctx, oid)
		if err != nil {
			response.Fail(w, err)
			return
		}
		student.Photo = current.Photo

		if err := students.Update(ctx, oid, student); err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("student updated", slog.String("id", id))
		response.Message(w, "Alumno actualizado")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete handles DELETE /students/{id}
// Removes the student and, when it has one, its photo.
//
// A photo that is already gone from the bucket does not stop the record
// from being deleted; any other storage failure does.
// ─────────────────────────────────────────────────────────────────────────────
func Delete(students storage.Repository[types.Student], photos *attachment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		slog.Info("deleting a student", slog.String("id", id))
		ctx := r.Context()

		oid, err := objectid.Decode(id)
		if err != nil {
			response.Fail(w, err)
			return
		}

		student, err := students.Get(ctx, oid)
		if err != nil {
			response.Fail(w, err)
			return
		}

		if student.Photo != nil && *student.Photo != "" {
			key := photos.KeyFromURL(*student.Photo)
			err := photos.Delete(ctx, key)
			switch {
			case errors.Is(err, attachment.ErrNotFound):
				slog.Warn("student photo already missing",
					slog.String("id", id),
					slog.String("key", key))
			case err != nil:
				response.Fail(w, err)
				return
			}
		}

		if err := students.Delete(ctx, oid); err != nil {
			response.Fail(w, err)
			return
		}

		slog.Info("student deleted", slog.String("id", id))
		response.Message(w, "El alumno y su foto han sido eliminados")
	}
}

func discardPhoto(ctx context.Context, photos *attachment.Service, key string) {
	if err := photos.Delete(ctx, key); err != nil {
		slog.Error("failed to discard photo of unsaved student",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}

// decode reads the student from a JSON body or a multipart form. The
// returned upload is nil when no file was sent.
func decode(r *http.Request) (types.Student, *upload, error) {
	var student types.Student

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		err := request.DecodeJSON(r, &student)
		return student, nil, err
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		return student, nil, fmt.Errorf("%w: %v", request.ErrUnprocessable, err)
	}

	student.Name = r.FormValue("nombre")
	student.Surname = r.FormValue("apellido")
	student.BirthDate = r.FormValue("fecha_nacimiento")
	student.Address = r.FormValue("direccion")
	if err := request.Validate(student); err != nil {
		return student, nil, err
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return student, nil, nil
	}
	if err != nil {
		return student, nil, fmt.Errorf("%w: %v", request.ErrUnprocessable, err)
	}

	return student, &upload{
		File:        file,
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
	}, nil
}

// upload is the photo part of a multipart create.
type upload struct {
	multipart.File
	filename    string
	contentType string
}
