package storage

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The helpers below serve the embedded backends, which persist documents as
// their JSON encoding and have no query language of their own.

// ApplyJSON applies change to a JSON-encoded document and returns the new
// encoding.
func ApplyJSON(body []byte, change Change) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("ApplyJSON: decode: %w", err)
	}

	for field, value := range change.Set {
		v, err := plain(value)
		if err != nil {
			return nil, fmt.Errorf("ApplyJSON: set %s: %w", field, err)
		}
		doc[field] = v
	}

	for field, value := range change.Push {
		v, err := plain(value)
		if err != nil {
			return nil, fmt.Errorf("ApplyJSON: push %s: %w", field, err)
		}
		switch arr := doc[field].(type) {
		case nil:
			doc[field] = []any{v}
		case []any:
			doc[field] = append(arr, v)
		default:
			return nil, fmt.Errorf("ApplyJSON: push %s: field is not an array", field)
		}
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("ApplyJSON: encode: %w", err)
	}
	return out, nil
}

// MatchesJSON reports whether the JSON-encoded document holds ref in field.
func MatchesJSON(body []byte, field string, ref primitive.ObjectID) (bool, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return false, fmt.Errorf("MatchesJSON: decode: %w", err)
	}

	raw, ok := doc[field]
	if !ok {
		return false, nil
	}

	var got string
	if err := json.Unmarshal(raw, &got); err != nil {
		// null or a non-string value never matches an identifier
		return false, nil
	}
	return got == ref.Hex(), nil
}

// plain round-trips v through JSON so values such as primitive.ObjectID
// end up in the same shape as the rest of a decoded document.
func plain(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
