// Package validate checks untrusted request input against declarative field
// schemas before any of it reaches a store query. Input arrives as loosely typed
// values (decoded JSON or folded form fields), so anything that is not a plain
// string is rejected outright.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError identifies the first field that failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

type Format int

const (
	FormatNone Format = iota
	FormatEmail
)

// Field describes one string field. MaxLen counts characters and MaxBytes counts
// encoded bytes; zero means unbounded.
type Field struct {
	Name     string
	MaxLen   int
	MaxBytes int
	Required bool
	Format   Format
}

func (f Field) tag() string {
	var parts []string
	if f.Required {
		parts = append(parts, "required")
	} else {
		parts = append(parts, "omitempty")
	}
	if f.MaxLen > 0 {
		parts = append(parts, "max="+strconv.Itoa(f.MaxLen))
	}
	if f.Format == FormatEmail {
		parts = append(parts, "email")
	}
	return strings.Join(parts, ",")
}

// Schema is checked in order; validation stops at the first failure.
type Schema []Field

// Input is raw, untrusted request data keyed by field name.
type Input map[string]any

// Values holds fields that passed validation.
type Values map[string]string

// bcrypt refuses longer input
const maxPasswordBytes = 72

var (
	SignupSchema = Schema{
		{Name: "name", MaxLen: 20, Required: true},
		{Name: "email", Required: true, Format: FormatEmail},
		{Name: "password", MaxLen: 20, MaxBytes: maxPasswordBytes, Required: true},
	}
	LoginSchema = Schema{
		{Name: "email", Required: true, Format: FormatEmail},
		{Name: "password", MaxLen: 20, MaxBytes: maxPasswordBytes, Required: true},
	}
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate returns the schema's fields as strings, or a *ValidationError for the first offending one.
// Fields not named by the schema are ignored.
func (s Schema) Validate(in Input) (Values, error) {
	out := make(Values, len(s))
	for _, f := range s {
		raw, present := in[f.Name]
		if !present || raw == nil {
			if f.Required {
				return nil, &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q is required", f.Name)}
			}
			continue
		}
		str, ok := raw.(string)
		if !ok {
			return nil, &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q must be a string", f.Name)}
		}
		if err := validate.Var(str, f.tag()); err != nil {
			return nil, &ValidationError{Field: f.Name, Reason: reason(f, err)}
		}
		if f.MaxBytes > 0 && len(str) > f.MaxBytes {
			return nil, &ValidationError{Field: f.Name, Reason: fmt.Sprintf("%q must not exceed %d bytes", f.Name, f.MaxBytes)}
		}
		out[f.Name] = str
	}
	return out, nil
}

func reason(f Field, err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Sprintf("%q is invalid", f.Name)
	}
	switch fieldErrs[0].Tag() {
	case "required":
		return fmt.Sprintf("%q is not allowed to be empty", f.Name)
	case "max":
		return fmt.Sprintf("%q length must be less than or equal to %d characters long", f.Name, f.MaxLen)
	case "email":
		return fmt.Sprintf("%q must be a valid email", f.Name)
	default:
		return fmt.Sprintf("%q is invalid", f.Name)
	}
}
