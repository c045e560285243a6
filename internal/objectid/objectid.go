// Package objectid converts between the identifiers clients see (24 hex
// characters) and the ObjectIDs stored in the database.
package objectid

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalid is returned for any string that is not a well-formed ObjectID.
var ErrInvalid = errors.New("ID no válido")

// Decode parses an external identifier.
func Decode(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return id, nil
}

// Encode renders an ObjectID the way clients see it.
func Encode(id primitive.ObjectID) string {
	return id.Hex()
}

// DecodeAll parses every identifier in ss, failing on the first bad one.
// A nil or empty input yields an empty, non-nil slice.
func DecodeAll(ss []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(ss))
	for _, s := range ss {
		id, err := Decode(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
