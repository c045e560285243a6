// Package router wires every handler onto a chi router.
//
// Route table (trailing slashes are optional):
//
//	GET    /healthz
//	GET    /students            POST   /students
//	GET    /students/{id}       PUT    /students/{id}       DELETE /students/{id}
//	GET    /teachers            POST   /teachers
//	GET    /teachers/{id}       PUT    /teachers/{id}       DELETE /teachers/{id}
//	GET    /subjects            POST   /subjects            POST   /subjects/assign
//	GET    /subjects/{id}       PUT    /subjects/{id}       DELETE /subjects/{id}
//	GET    /grades/student/{id} GET    /grades/subject/{id}
//	POST   /grades              DELETE /grades/{id}
//	GET    /enrollments/student/{id} GET /enrollments/subject/{id}
//	POST   /enrollments         DELETE /enrollments/{id}
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/upiiz/school-records-api/internal/attachment"
	"github.com/upiiz/school-records-api/internal/http/handlers/enrollment"
	"github.com/upiiz/school-records-api/internal/http/handlers/grade"
	"github.com/upiiz/school-records-api/internal/http/handlers/student"
	"github.com/upiiz/school-records-api/internal/http/handlers/subject"
	"github.com/upiiz/school-records-api/internal/http/handlers/teacher"
	"github.com/upiiz/school-records-api/internal/reference"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/utils/response"
)

// New builds the application's HTTP handler.
func New(repos *storage.Repos, photos *attachment.Service) http.Handler {
	refs := reference.New(repos)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/healthz", health(repos))

	r.Route("/students", func(r chi.Router) {
		r.Get("/", student.GetList(repos.Students))
		r.Post("/", student.New(repos.Students, photos))
		r.Get("/{id}", student.GetByID(repos.Students))
		r.Put("/{id}", student.Update(repos.Students))
		r.Delete("/{id}", student.Delete(repos.Students, photos))
	})

	r.Route("/teachers", func(r chi.Router) {
		r.Get("/", teacher.GetList(repos.Teachers))
		r.Post("/", teacher.New(repos.Teachers))
		r.Get("/{id}", teacher.GetByID(repos.Teachers))
		r.Put("/{id}", teacher.Update(repos.Teachers))
		r.Delete("/{id}", teacher.Delete(repos.Teachers))
	})

	r.Route("/subjects", func(r chi.Router) {
		r.Get("/", subject.GetList(repos.Subjects))
		r.Post("/", subject.New(repos.Subjects, refs))
		r.Post("/assign", subject.Assign(repos, refs))
		r.Get("/{id}", subject.GetByID(repos.Subjects))
		r.Put("/{id}", subject.Update(repos.Subjects, refs))
		r.Delete("/{id}", subject.Delete(repos.Subjects))
	})

	r.Route("/grades", func(r chi.Router) {
		r.Post("/", grade.New(repos.Grades, refs))
		r.Get("/student/{id}", grade.ByStudent(repos.Grades))
		r.Get("/subject/{id}", grade.BySubject(repos.Grades))
		r.Delete("/{id}", grade.Delete(repos.Grades))
	})

	r.Route("/enrollments", func(r chi.Router) {
		r.Post("/", enrollment.New(repos.Enrollments, refs))
		r.Get("/student/{id}", enrollment.ByStudent(repos.Enrollments))
		r.Get("/subject/{id}", enrollment.BySubject(repos.Enrollments))
		r.Delete("/{id}", enrollment.Delete(repos.Enrollments))
	})

	return r
}

// health reports ok once the database answers a ping.
func health(repos *storage.Repos) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := repos.Ping(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusServiceUnavailable, response.GeneralError(err))
			return
		}
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": response.StatusOK})
	}
}

// logRequests writes one structured line per request.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			slog.Info("request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)))
		}()

		next.ServeHTTP(ww, r)
	})
}
