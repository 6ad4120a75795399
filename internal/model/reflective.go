package model

import (
	"iter"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Get returns the value of the named feature: the attribute value, the
// referenced element (nil when empty) or the collection view of a
// multi-valued reference
func (e *Element) Get(name string) (any, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	return e.get(f), nil
}

// GetAttribute returns the value of the named attribute
func (e *Element) GetAttribute(name string) (any, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	if f.IsReference() {
		return nil, e.wrongKind(f, meta.KindAttribute, "use GetReference for references")
	}
	return e.values[f.Index], nil
}

// GetReference returns the referenced element of a single-valued reference
// (nil when empty) or the collection view of a multi-valued one
func (e *Element) GetReference(name string) (any, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	if !f.IsReference() {
		return nil, e.wrongKind(f, meta.KindReference, "use GetAttribute for attributes")
	}
	return e.get(f), nil
}

// Reference returns the target of the named single-valued reference
func (e *Element) Reference(name string) (*Element, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	if f.Kind != meta.KindReference {
		return nil, e.wrongKind(f, meta.KindReference, "Reference only serves single-valued references")
	}
	target, _ := e.values[f.Index].(*Element)
	return target, nil
}

// Collection returns a view over the named multi-valued reference
func (e *Element) Collection(name string) (*Collection, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	if !f.IsMany() {
		return nil, e.wrongKind(f, meta.KindReferences, "use View for single-valued references")
	}
	return newCollection(e, f), nil
}

// View returns a collection view over the named reference, whatever its
// cardinality
func (e *Element) View(name string) (ElementCollection, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	if !f.IsReference() {
		return nil, errors.WithHint(
			&meta.FeatureError{Type: e.typ.Name, Feature: f.Name, Err: ErrNotCollection},
			"collection views wrap reference features only")
	}
	return e.view(f), nil
}

// SetFeature assigns the named feature. It is the reflective equivalent of a
// strongly-typed setter and fires the same events.
func (e *Element) SetFeature(name string, value any) error {
	f, err := e.Feature(name)
	if err != nil {
		return err
	}
	return e.Assign(f, value)
}

// ReferencedElements yields the current targets of every reference feature
// in declaration order, skipping empty references. The sequence reads the
// live state each time it is iterated.
func (e *Element) ReferencedElements() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, f := range e.typ.AllFeatures() {
			if !f.IsReference() {
				continue
			}
			for target := range e.view(f).All() {
				if !yield(target) {
					return
				}
			}
		}
	}
}

func (e *Element) get(f *meta.Feature) any {
	switch f.Kind {
	case meta.KindReferences:
		return newCollection(e, f)
	case meta.KindReference:
		if target, ok := e.values[f.Index].(*Element); ok {
			return target
		}
		return nil
	default:
		return e.values[f.Index]
	}
}

func (e *Element) view(f *meta.Feature) ElementCollection {
	if f.IsMany() {
		return newCollection(e, f)
	}
	return newSingletonView(e, f)
}

func (e *Element) wrongKind(f *meta.Feature, want meta.FeatureKind, hint string) error {
	return errors.WithHint(&meta.FeatureError{
		Type:    e.typ.Name,
		Feature: f.Name,
		Err:     meta.ErrUnknownFeature,
		Got:     f.Kind.String(),
		Want:    want.String(),
	}, hint)
}
