package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/labstack/echo/v4"
)

// Binder decodes request bodies strictly: a field the target struct does not
// declare is rejected instead of silently dropped. Query parameters of
// GET, HEAD and DELETE requests go through echo's default binder.
type Binder struct {
	query echo.DefaultBinder
}

var _ echo.Binder = (*Binder)(nil)

// NewBinder creates a strict binder
func NewBinder() *Binder {
	return &Binder{}
}

// Bind implements echo.Binder
func (b *Binder) Bind(i interface{}, c echo.Context) error {
	req := c.Request()
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		if err := b.query.BindQueryParams(c, i); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid query parameters").SetInternal(err)
		}
		return nil
	}

	if req.Body == nil {
		return nil
	}

	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(i); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return decodeError(err)
	}
	return nil
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)

	switch {
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`)
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%q is not allowed", field))
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "Request body must be an object").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%q must be %s", field, kindName(typeErr.Type))).SetInternal(err)
	case errors.As(err, &maxErr):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format").SetInternal(err)
	}
	// Errors raised by custom unmarshalers are mapped by Error.
	return err
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "a string"
	case reflect.Bool:
		return "a boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Slice, reflect.Array:
		return "an array"
	default:
		return "an object"
	}
}
