package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Optional is a patch field with three states: absent (Set is false),
// explicit null (Null is true) and a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an explicit null optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked for keys present in the document, which is
// what separates absent from null.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		o.Null = true
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON encodes absent and null optionals as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func applyValue[T any](field string, o Optional[T], dst *T) error {
	if !o.Set {
		return nil
	}
	if o.Null {
		return &ValidationError{Field: field, Reason: "must not be null"}
	}
	*dst = o.Value
	return nil
}

func applyRequiredString(field string, o Optional[string], dst *string, maxLen int) error {
	if !o.Set {
		return nil
	}
	if o.Null {
		return &ValidationError{Field: field, Reason: "must not be null"}
	}
	v := strings.TrimSpace(o.Value)
	if v == "" {
		return &ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(v) > maxLen {
		return &ValidationError{Field: field, Reason: "is too long"}
	}
	*dst = v
	return nil
}

// applyClearableString treats null as the empty string.
func applyClearableString(o Optional[string], dst *string) {
	if !o.Set {
		return
	}
	if o.Null {
		*dst = ""
		return
	}
	*dst = o.Value
}

func applyNullable[T any](o Optional[T], dst **T) {
	if !o.Set {
		return
	}
	if o.Null {
		*dst = nil
		return
	}
	v := o.Value
	*dst = &v
}
