// Package validation holds the field-level rules for project records and
// account forms. Every Validate function either returns a normalized value
// or an Errors map with one message per failing field.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adb-analytics/apiserver/types"
	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// Errors maps a JSON field name to the first violated rule's message.
type Errors map[string]string

func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// FieldErrors extracts the field map from err, if err carries one.
func FieldErrors(err error) (Errors, bool) {
	var fields Errors
	if errors.As(err, &fields) {
		return fields, true
	}
	return nil, false
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return types.IsCountry(fl.Field().String())
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// ParseDate accepts a calendar date (2024-01-31) or an RFC 3339 timestamp.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// check runs the struct rules and translates failures with messages,
// a table of field -> tag -> message. The "" tag is the per-field fallback.
func check(input any, messages map[string]map[string]string) Errors {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{"_": err.Error()}
	}

	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = message(messages, field, fe.Tag())
	}
	return out
}

func message(messages map[string]map[string]string, field, tag string) string {
	byTag, ok := messages[field]
	if !ok {
		return field + " is invalid"
	}
	if msg, ok := byTag[tag]; ok {
		return msg
	}
	if msg, ok := byTag[""]; ok {
		return msg
	}
	return field + " is invalid"
}

func orNil(errs Errors) error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
