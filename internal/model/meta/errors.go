package meta

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownFeature is returned for reflective access to an undeclared feature
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrTypeMismatch is returned when a value does not conform to the declared feature type
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrUnknownType is returned when a type URI has not been declared
	ErrUnknownType = errors.New("unknown type")

	// ErrInvalidType is returned when a type declaration is inconsistent
	ErrInvalidType = errors.New("invalid type declaration")
)

// FeatureError reports a failed reflective access with the entity type and
// feature involved
type FeatureError struct {
	Type    string
	Feature string
	Got     string
	Want    string
	Err     error
}

// Error implements the error interface
func (e *FeatureError) Error() string {
	msg := fmt.Sprintf("%s.%s: %v", e.Type, e.Feature, e.Err)
	if e.Want != "" {
		msg += fmt.Sprintf(" (got %s, want %s)", e.Got, e.Want)
	}
	return msg
}

// Unwrap returns the sentinel error
func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Mismatch builds a TypeMismatch error for a value offered to feature f of
// an instance of t
func Mismatch(t *EntityType, f *Feature, v any) error {
	got := "nil"
	if v != nil {
		got = fmt.Sprintf("%T", v)
	}
	if t, ok := v.(Typed); ok && t.Type() != nil {
		got = fmt.Sprintf("element(%s)", t.Type().URI)
	}
	return &FeatureError{
		Type:    t.Name,
		Feature: f.Name,
		Got:     got,
		Want:    f.Describe(),
		Err:     ErrTypeMismatch,
	}
}

// DeclError is a metamodel declaration error with context
type DeclError struct {
	Type    string
	Feature string
	Message string
	Hint    string
}

// Error implements the error interface
func (e *DeclError) Error() string {
	s := e.Type
	if e.Feature != "" {
		s += "." + e.Feature
	}
	s += ": " + e.Message
	if e.Hint != "" {
		s += "\n  hint: " + e.Hint
	}
	return s
}

// Unwrap allows errors.Is(err, ErrInvalidType)
func (e *DeclError) Unwrap() error {
	return ErrInvalidType
}
