// Package validator checks struct tags on decoded request bodies and
// reports failures in a shape the HTTP layer can render as a 400 with
// per-field messages.
package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError collects every field that failed in one Validate call.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("field '%s' %s", fe.Field(), messageFor(fe)))
	}
	return strings.Join(parts, "; ")
}

// Fields maps each failing field to a human-readable message, keyed the
// way the field appears in the request struct (slice elements include
// their index, e.g. "ProductIDs[1]").
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, fe := range e.Errors {
		fields[fe.Field()] = messageFor(fe)
	}
	return fields
}

// Validate runs the struct's validate tags and returns a *ValidationError
// when any rule fails. Handlers pass the result straight to
// httputil.WriteValidationError.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &ValidationError{Errors: verrs}
	}
	// Non-struct input or a bad tag; nothing field-level to report.
	return err
}

// staticMessages covers rules whose wording takes no parameter.
var staticMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"uuid":     "must be a valid UUID",
	"url":      "must be a valid URL",
}

func messageFor(fe validator.FieldError) string {
	if msg, ok := staticMessages[fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	}
	return "failed validation rule '" + fe.Tag() + "'"
}
