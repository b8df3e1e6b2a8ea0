package httputil

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes an absent PATCH field from an explicit null
// (RFC 7396). Present is false when the key was missing; Value is nil when
// the key was null.
type Optional[T any] struct {
	Present bool
	Value   *T
}

// OptionalString is the tri-state used for nullable id fields
type OptionalString = Optional[string]

// UnmarshalJSON only runs for keys present in the document
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Present = true
	o.Value = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Cleared reports an explicit null
func (o Optional[T]) Cleared() bool {
	return o.Present && o.Value == nil
}
