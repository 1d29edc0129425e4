package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/taskmaster/taskboard/internal/domain/entities"
	"github.com/taskmaster/taskboard/internal/ports"
)

// Error is a rejected request payload. Message is the first violation in
// human form.
type Error struct {
	Field   string
	Tag     string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New returns an *Error carrying a ready-made message
func New(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

var strongPasswordRules = []*regexp.Regexp{
	regexp.MustCompile(`[a-z]`),
	regexp.MustCompile(`[A-Z]`),
	regexp.MustCompile(`[0-9]`),
	regexp.MustCompile(`[!@#$%^&*]`),
}

// Messages that override the generated ones, keyed by "Struct.field.tag"
// or "field.tag".
var messages = map[string]string{
	"name.required":                "Name is required",
	"RegisterRequest.name.min":     "Name must be at least 3 characters",
	"RegisterRequest.name.max":     "Name must be less than 50 characters",
	"email.required":               "Email is required",
	"email.email":                  "Please provide a valid email address",
	"password.required":            "Password is required",
	"password.min":                 "Password must be at least 8 characters",
	"password.strongpassword":      "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character (!@#$%^&*)",
	"projectId.required":           "Invalid project ID",
	"projectId.objectid":           "Invalid project ID",
	"title.required":               "Task title is required",
	"title.min":                    "Task title is required",
	"title.max":                    "Task title must be less than 200 characters",
	"description.max":              "Description must be less than %s characters",
	"assigneeId.objectid":          "Invalid assignee ID",
	"assignee.objectid|eq=all":     "Invalid assignee ID",
	"status.required":              "Status is required",
	"status.taskstatus":            "Status must be one of: todo, in-progress, done",
	"priority.taskpriority":        "Priority must be one of: low, medium, high",
}

// Validator implements echo.Validator on top of go-playground/validator
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the custom rules registered
func NewValidator() *Validator {
	v := validator.New()

	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	v.RegisterCustomTypeFunc(optionalValue,
		ports.Optional[string]{},
		ports.Optional[float64]{},
		ports.Optional[time.Time]{},
	)

	mustRegister(v, "objectid", func(fl validator.FieldLevel) bool {
		return entities.IsValidID(fl.Field().String())
	})
	mustRegister(v, "strongpassword", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, rule := range strongPasswordRules {
			if !rule.MatchString(s) {
				return false
			}
		}
		return true
	})
	mustRegister(v, "taskstatus", func(fl validator.FieldLevel) bool {
		return entities.TaskStatus(fl.Field().String()).IsValid()
	})
	mustRegister(v, "taskpriority", func(fl validator.FieldLevel) bool {
		return entities.Priority(fl.Field().String()).IsValid()
	})

	v.RegisterStructValidation(atLeastOneField,
		ports.UpdateProjectRequest{},
		ports.UpdateTaskRequest{},
		ports.UpdateSubtaskRequest{},
	)

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// Validate checks i and returns a *Error describing the first violation
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}

	fe := verrs[0]
	return &Error{
		Field:   fe.Field(),
		Tag:     fe.Tag(),
		Message: message(fe),
	}
}

func optionalValue(field reflect.Value) interface{} {
	if o, ok := field.Interface().(interface{ ValidationValue() any }); ok {
		return o.ValidationValue()
	}
	return nil
}

// atLeastOneField rejects an update payload in which no field was present.
// Pointer fields count when non-nil, Optional fields when set.
func atLeastOneField(sl validator.StructLevel) {
	current := sl.Current()
	for i := 0; i < current.NumField(); i++ {
		f := current.Field(i)
		switch f.Kind() {
		case reflect.Ptr, reflect.Slice, reflect.Map:
			if !f.IsNil() {
				return
			}
		default:
			if o, ok := f.Interface().(interface{ IsSet() bool }); ok && o.IsSet() {
				return
			}
		}
	}
	sl.ReportError(current.Interface(), current.Type().Name(), "", "atleast", "")
}

func message(fe validator.FieldError) string {
	structName := strings.SplitN(fe.StructNamespace(), ".", 2)[0]
	for _, key := range []string{
		structName + "." + fe.Field() + "." + fe.Tag(),
		fe.Field() + "." + fe.Tag(),
		structName + "." + fe.Tag(),
	} {
		if msg, ok := messages[key]; ok {
			if strings.Contains(msg, "%s") {
				return fmt.Sprintf(msg, fe.Param())
			}
			return msg
		}
	}

	if fe.Tag() == "atleast" {
		return "Provide at least one field to update"
	}

	field := fmt.Sprintf("%q", fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s length must be less than or equal to %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return field + " must be a valid email"
	case "objectid", "objectid|eq=all":
		return field + " must be a valid id"
	default:
		return field + " is invalid"
	}
}
