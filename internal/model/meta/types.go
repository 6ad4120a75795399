// Package meta provides the entity type descriptors behind every model element.
// Descriptors are declared once, resolved lazily through a Registry and never
// mutated after resolution.
package meta

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ValueType represents the runtime type a feature value must conform to
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool

	// TypeElement marks reference features; the target entity type is carried
	// separately on the feature.
	TypeElement
)

// String returns the string representation of the value type
func (v ValueType) String() string {
	switch v {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeBool:
		return "bool"
	case TypeElement:
		return "element"
	default:
		return "unknown"
	}
}

// ParseValueType converts a string to a ValueType
func ParseValueType(s string) (ValueType, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "int":
		return TypeInt, nil
	case "float":
		return TypeFloat, nil
	case "bool":
		return TypeBool, nil
	case "element":
		return TypeElement, nil
	default:
		return 0, errors.WithHint(errors.Wrapf(ErrInvalidType, "unknown value type %q", s),
			"use string, int, float, bool or element")
	}
}

// FeatureKind distinguishes attributes from single- and multi-valued references
type FeatureKind int

const (
	KindAttribute FeatureKind = iota
	KindReference
	KindReferences
)

// String returns the string representation of the feature kind
func (k FeatureKind) String() string {
	switch k {
	case KindAttribute:
		return "attribute"
	case KindReference:
		return "reference"
	case KindReferences:
		return "references"
	default:
		return "unknown"
	}
}

// ParseFeatureKind converts a string to a FeatureKind
func ParseFeatureKind(s string) (FeatureKind, error) {
	switch s {
	case "attribute", "":
		return KindAttribute, nil
	case "reference":
		return KindReference, nil
	case "references":
		return KindReferences, nil
	default:
		return 0, errors.WithHint(errors.Wrapf(ErrInvalidType, "unknown feature kind %q", s),
			"use attribute, reference or references")
	}
}

// Feature describes one named attribute or reference slot of an entity type
type Feature struct {
	Name       string
	Kind       FeatureKind
	Type       ValueType
	Target     string // type URI of referenced elements
	Identifier bool
	Ordered    bool
	Unique     bool

	// Index is the position of the feature in the flattened feature list of
	// the declaring type and of every type extending it.
	Index int
	Owner *EntityType
}

// Key returns the normalized lookup key of the feature
func (f *Feature) Key() string {
	return NormalizeName(f.Name)
}

// IsReference returns true for single- and multi-valued references
func (f *Feature) IsReference() bool {
	return f.Kind == KindReference || f.Kind == KindReferences
}

// IsMany returns true if the feature holds a collection
func (f *Feature) IsMany() bool {
	return f.Kind == KindReferences
}

// UpperBound returns the maximum cardinality, -1 meaning unbounded
func (f *Feature) UpperBound() int {
	if f.IsMany() {
		return -1
	}
	return 1
}

// String renders the feature as Owner.name
func (f *Feature) String() string {
	if f.Owner == nil {
		return f.Name
	}
	return f.Owner.Name + "." + f.Name
}

// Describe renders the declared type of the feature for diagnostics
func (f *Feature) Describe() string {
	switch f.Kind {
	case KindReference:
		return fmt.Sprintf("element(%s)", f.Target)
	case KindReferences:
		return fmt.Sprintf("[]element(%s)", f.Target)
	default:
		return f.Type.String()
	}
}

// Accepts reports whether an element of type t may be stored in the feature
func (f *Feature) Accepts(t *EntityType) bool {
	return f.IsReference() && t != nil && t.Is(f.Target)
}

// CoerceAttribute converts v to the canonical Go representation of the
// attribute's value type. nil is always accepted and means "no value".
func (f *Feature) CoerceAttribute(v any) (any, bool) {
	if v == nil {
		return nil, true
	}
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		return s, ok
	case TypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), true
		case int8:
			return int64(n), true
		case int16:
			return int64(n), true
		case int32:
			return int64(n), true
		case int64:
			return n, true
		case uint8:
			return int64(n), true
		case uint16:
			return int64(n), true
		case uint32:
			return int64(n), true
		}
	case TypeFloat:
		switch n := v.(type) {
		case float32:
			return float64(n), true
		case float64:
			return n, true
		}
	case TypeBool:
		b, ok := v.(bool)
		return b, ok
	}
	return nil, false
}

// EntityType describes a kind of model element and its declared features
type EntityType struct {
	URI       string
	Name      string
	Namespace string
	Abstract  bool
	Super     *EntityType

	// Features holds the features declared by this type in declaration order
	Features []*Feature

	all        []*Feature
	own        map[string]*Feature
	identifier *Feature
}

// AllFeatures returns the features of the type including inherited ones,
// ancestors first. The slice must not be modified.
func (t *EntityType) AllFeatures() []*Feature {
	return t.all
}

// References returns all reference features in declaration order
func (t *EntityType) References() []*Feature {
	refs := make([]*Feature, 0, len(t.all))
	for _, f := range t.all {
		if f.IsReference() {
			refs = append(refs, f)
		}
	}
	return refs
}

// Identifier returns the identifying attribute, or nil if the type has none
func (t *EntityType) Identifier() *Feature {
	return t.identifier
}

// Lookup finds a feature by name, delegating to ancestors
func (t *EntityType) Lookup(name string) (*Feature, bool) {
	key := NormalizeName(name)
	for c := t; c != nil; c = c.Super {
		if f, ok := c.own[key]; ok {
			return f, true
		}
	}
	return nil, false
}

// ResolveFeature finds a feature by name or fails with ErrUnknownFeature
func (t *EntityType) ResolveFeature(name string) (*Feature, error) {
	if f, ok := t.Lookup(name); ok {
		return f, nil
	}
	return nil, &FeatureError{Type: t.Name, Feature: name, Err: ErrUnknownFeature}
}

// Owns reports whether f is one of the features of t (declared or inherited)
func (t *EntityType) Owns(f *Feature) bool {
	return f != nil && f.Index >= 0 && f.Index < len(t.all) && t.all[f.Index] == f
}

// Is reports whether the type is, or extends, the type identified by uri
func (t *EntityType) Is(uri string) bool {
	for c := t; c != nil; c = c.Super {
		if c.URI == uri {
			return true
		}
	}
	return false
}

// Conforms reports whether t can be used where other is expected
func (t *EntityType) Conforms(other *EntityType) bool {
	return other != nil && t.Is(other.URI)
}

// String returns the type name
func (t *EntityType) String() string {
	return t.Name
}

// NormalizeName upper-cases a feature name for reflective lookup so that the
// reflective and strongly-typed access paths are interchangeable.
func NormalizeName(name string) string {
	return strings.ToUpper(name)
}

// TypeURI builds the URI of a type declared in namespace
func TypeURI(namespace, name string) string {
	return namespace + "#//" + name
}

// SplitTypeURI splits a type URI into namespace and type name
func SplitTypeURI(uri string) (namespace, name string, ok bool) {
	i := strings.LastIndex(uri, "#//")
	if i < 0 {
		return "", "", false
	}
	return uri[:i], uri[i+3:], uri[i+3:] != ""
}

// Typed is implemented by runtime instances of an entity type
type Typed interface {
	Type() *EntityType
}
