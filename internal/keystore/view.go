package keystore

import (
	"encoding/json"
	"fmt"
)

// Tag names a collection of documents of one record type.
type Tag string

// Key is a composite index key. Two keys are equal when their JSON
// encodings are equal, so callers must emit and query with the same
// element types (int vs string).
type Key []any

// K builds a Key from its parts.
func K(parts ...any) Key { return Key(parts) }

func (k Key) encode() (string, error) {
	b, err := json.Marshal([]any(k))
	if err != nil {
		return "", fmt.Errorf("encode key %v: %w", []any(k), err)
	}
	return string(b), nil
}

// View is a secondary index over the documents of one Tag. Views can only
// be built with NewView and are fixed when the Store is constructed.
type View struct {
	name string
	tag  Tag
	emit func(body []byte) ([]Key, error)
}

// NewView declares a view over documents tagged tag whose bodies decode into
// T. emit returns zero or more keys for a record.
func NewView[T any](name string, tag Tag, emit func(T) []Key) View {
	return View{
		name: name,
		tag:  tag,
		emit: func(body []byte) ([]Key, error) {
			var rec T
			if err := json.Unmarshal(body, &rec); err != nil {
				return nil, fmt.Errorf("view %s: decode %s: %w", name, tag, err)
			}
			return emit(rec), nil
		},
	}
}

func (v View) Name() string { return v.name }
func (v View) Tag() Tag     { return v.tag }
