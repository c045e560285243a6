// Package types holds the documents stored by the application. Keeping them
// in one place prevents import cycles: handlers, storage backends and the
// reference checker all import types without depending on each other.
//
// Each field carries identical json and bson names. The Mongo backend uses
// the bson tags, the embedded backends persist the JSON encoding, and
// filters such as FindBy("alumno_id", ...) rely on both agreeing.
package types

import "go.mongodb.org/mongo-driver/bson/primitive"

// Student is stored in the "alumnos" collection. Photo holds the public URL
// of an uploaded attachment, or nil.
type Student struct {
	ID        primitive.ObjectID `json:"_id"              bson:"_id"`
	Name      string             `json:"nombre"           bson:"nombre"           validate:"required"`
	Surname   string             `json:"apellido"         bson:"apellido"         validate:"required"`
	BirthDate string             `json:"fecha_nacimiento" bson:"fecha_nacimiento" validate:"required"`
	Address   string             `json:"direccion"        bson:"direccion"        validate:"required"`
	Photo     *string            `json:"foto"             bson:"foto"`
}

// Teacher is stored in the "profesores" collection.
type Teacher struct {
	ID        primitive.ObjectID   `json:"_id"              bson:"_id"`
	Name      string               `json:"nombre"           bson:"nombre"`
	Surname   string               `json:"apellido"         bson:"apellido"`
	BirthDate string               `json:"fecha_nacimiento" bson:"fecha_nacimiento"`
	Address   string               `json:"direccion"        bson:"direccion"`
	Specialty string               `json:"especialidad"     bson:"especialidad"`
	Subjects  []primitive.ObjectID `json:"materias"         bson:"materias"`
}

// Subject is stored in the "materias" collection. TeacherID is nil until a
// teacher is assigned.
type Subject struct {
	ID          primitive.ObjectID  `json:"_id"         bson:"_id"`
	Name        string              `json:"nombre"      bson:"nombre"`
	Description string              `json:"descripcion" bson:"descripcion"`
	TeacherID   *primitive.ObjectID `json:"profesor_id" bson:"profesor_id"`
}

// Grade is stored in the "calificaciones" collection. A student may hold
// any number of grades for the same subject.
type Grade struct {
	ID        primitive.ObjectID `json:"_id"          bson:"_id"`
	StudentID primitive.ObjectID `json:"alumno_id"    bson:"alumno_id"`
	SubjectID primitive.ObjectID `json:"materia_id"   bson:"materia_id"`
	Score     int                `json:"calificacion" bson:"calificacion"`
}

// Enrollment is stored in the "inscripciones" collection. Duplicates are
// allowed.
type Enrollment struct {
	ID        primitive.ObjectID `json:"_id"        bson:"_id"`
	StudentID primitive.ObjectID `json:"alumno_id"  bson:"alumno_id"`
	SubjectID primitive.ObjectID `json:"materia_id" bson:"materia_id"`
}

// Field names used in filters and partial updates.
const (
	FieldStudentID = "alumno_id"
	FieldSubjectID = "materia_id"
	FieldTeacherID = "profesor_id"
	FieldSubjects  = "materias"
)

func (s Student) DocumentID() primitive.ObjectID    { return s.ID }
func (s Teacher) DocumentID() primitive.ObjectID    { return s.ID }
func (s Subject) DocumentID() primitive.ObjectID    { return s.ID }
func (s Grade) DocumentID() primitive.ObjectID      { return s.ID }
func (s Enrollment) DocumentID() primitive.ObjectID { return s.ID }

func (s Student) WithID(id primitive.ObjectID) Student       { s.ID = id; return s }
func (s Teacher) WithID(id primitive.ObjectID) Teacher       { s.ID = id; return s }
func (s Subject) WithID(id primitive.ObjectID) Subject       { s.ID = id; return s }
func (s Grade) WithID(id primitive.ObjectID) Grade           { s.ID = id; return s }
func (s Enrollment) WithID(id primitive.ObjectID) Enrollment { s.ID = id; return s }
