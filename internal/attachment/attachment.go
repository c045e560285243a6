// Package attachment stores binary attachments (student photos) outside the
// database and hands back the public URL the record keeps.
//
// The Service owns the rules: only images are accepted, keys are
// "{folder}/{filename}", URLs are "https://{bucket}.{domain}/{key}".
// Backends only move bytes.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrUnsupportedMediaType rejects uploads that are not images.
	ErrUnsupportedMediaType = errors.New("El archivo debe ser una imagen.")

	// ErrUnavailable means the backend has no usable credentials.
	ErrUnavailable = errors.New("Credenciales de almacenamiento no encontradas")

	// ErrNotFound means the key does not exist in the bucket.
	ErrNotFound = errors.New("Objeto no encontrado en el almacenamiento")
)

// Error is any other storage-layer failure.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	switch e.Op {
	case "upload":
		return fmt.Sprintf("Error al subir archivo: %v", e.Err)
	case "delete":
		return fmt.Sprintf("Error al eliminar objeto: %v", e.Err)
	}
	return fmt.Sprintf("Error de almacenamiento: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Backend is an object store. Implementations report missing credentials
// with ErrUnavailable and missing keys with ErrNotFound, wrapped or not.
type Backend interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Service is safe for concurrent use if its Backend is.
type Service struct {
	backend Backend
	bucket  string
	domain  string
	folder  string
}

func New(backend Backend, bucket, domain, folder string) *Service {
	return &Service{backend: backend, bucket: bucket, domain: domain, folder: folder}
}

// Key derives the object key for an uploaded file name. Uploading the same
// name twice overwrites the first object.
func (s *Service) Key(filename string) string {
	return s.folder + "/" + path.Base(filename)
}

// URL is the public address of key.
func (s *Service) URL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.base() + strings.Join(segments, "/")
}

// KeyFromURL recovers the key from a URL built by URL. URLs from another
// bucket fall back to the folder plus the last path segment.
func (s *Service) KeyFromURL(rawURL string) string {
	if rest, ok := strings.CutPrefix(rawURL, s.base()); ok {
		if key, err := url.PathUnescape(rest); err == nil {
			return key
		}
		return rest
	}

	name := rawURL[strings.LastIndex(rawURL, "/")+1:]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return s.folder + "/" + name
}

func (s *Service) base() string {
	return fmt.Sprintf("https://%s.%s/", s.bucket, s.domain)
}

// Upload stores r under the key derived from filename and returns its URL.
// contentType comes from the client; when it is missing or generic the
// content is sniffed instead.
func (s *Service) Upload(ctx context.Context, r io.Reader, contentType, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &Error{Op: "upload", Err: err}
	}

	contentType = strings.TrimSpace(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(data).String()
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedMediaType
	}

	key := s.Key(filename)
	if err := s.backend.Put(ctx, key, data, contentType); err != nil {
		return "", classify("upload", err)
	}

	slog.Info("attachment uploaded",
		slog.String("key", key),
		slog.String("content_type", contentType),
		slog.Int("size", len(data)))
	return s.URL(key), nil
}

// Delete removes key. A missing key yields ErrNotFound.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return classify("delete", err)
	}
	slog.Info("attachment deleted", slog.String("key", key))
	return nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return ErrUnavailable
	case errors.Is(err, ErrNotFound):
		return ErrNotFound
	}
	return &Error{Op: op, Err: err}
}
