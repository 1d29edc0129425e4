package ports

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidDate is returned when a date field is neither RFC 3339 nor YYYY-MM-DD
var ErrInvalidDate = errors.New("invalid date")

var nullLiterals = [][]byte{[]byte("null"), []byte(`""`)}

// Optional is a nullable JSON field that remembers whether it was present.
// An absent field leaves Set false; null or "" sets it with Valid false.
type Optional[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Valid: true, Value: v}
}

// Null returns an Optional that clears the field
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Valid = false
	var zero T
	o.Value = zero

	trimmed := bytes.TrimSpace(data)
	for _, lit := range nullLiterals {
		if bytes.Equal(trimmed, lit) {
			return nil
		}
	}

	if dst, ok := any(&o.Value).(*time.Time); ok {
		t, err := parseDate(trimmed)
		if err != nil {
			return err
		}
		*dst = t
		o.Valid = true
		return nil
	}

	if err := json.Unmarshal(trimmed, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// IsSet reports whether the field appeared in the payload
func (o Optional[T]) IsSet() bool {
	return o.Set
}

// ValidationValue exposes the wrapped value to the validator, nil when cleared
func (o Optional[T]) ValidationValue() any {
	if !o.Valid {
		return nil
	}
	return o.Value
}

// Ptr returns a pointer to a copy of the value, nil when cleared or absent
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// Apply overwrites *dst when the field was present in the payload
func (o Optional[T]) Apply(dst **T) {
	if o.Set {
		*dst = o.Ptr()
	}
}

func parseDate(data []byte) (time.Time, error) {
	var ms float64
	if err := json.Unmarshal(data, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC(), nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, ErrInvalidDate
}
