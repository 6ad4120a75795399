package model

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// ModelElement is implemented by Element and by strongly-typed wrappers
// around it, so both can be handed to the reflective API
type ModelElement interface {
	ModelElement() *Element
}

// Element is a runtime instance of an entity type. It is not safe for
// concurrent mutation: a graph of elements must be mutated by one goroutine
// at a time.
type Element struct {
	typ    *meta.EntityType
	id     uuid.UUID
	values []any
	events []*featureEvents
	links  []link

	propertyChanging Event[ChangeEvent]
	propertyChanged  Event[ChangeEvent]
	deleting         Event[LifecycleEvent]
	deleted          Event[LifecycleEvent]

	isDeleted bool
}

type featureEvents struct {
	changing Event[ChangeEvent]
	changed  Event[ChangeEvent]
}

// link holds the subscriptions of one reference feature on the Deleted
// events of its current targets
type link struct {
	single *Subscription
	many   map[*Element]*Subscription
}

// Factory creates elements of one entity type
type Factory struct {
	Type *meta.EntityType
}

// NewFactory returns a factory bound to t
func NewFactory(t *meta.EntityType) Factory {
	return Factory{Type: t}
}

// New creates an element with a fresh structural identity
func (f Factory) New() (*Element, error) {
	return f.NewWithID(uuid.New())
}

// NewWithID creates an element with the given structural identity, used when
// restoring persisted elements
func (f Factory) NewWithID(id uuid.UUID) (*Element, error) {
	if f.Type == nil {
		return nil, errors.Wrap(meta.ErrUnknownType, "factory has no type")
	}
	if f.Type.Abstract {
		return nil, errors.Wrapf(ErrAbstractType, "cannot instantiate %s", f.Type.Name)
	}
	n := len(f.Type.AllFeatures())
	return &Element{
		typ:    f.Type,
		id:     id,
		values: make([]any, n),
		events: make([]*featureEvents, n),
		links:  make([]link, n),
	}, nil
}

// ModelElement returns the element itself
func (e *Element) ModelElement() *Element {
	return e
}

// Type returns the entity type descriptor of the element
func (e *Element) Type() *meta.EntityType {
	if e == nil {
		return nil
	}
	return e.typ
}

// ID returns the structural identity of the element
func (e *Element) ID() uuid.UUID {
	return e.id
}

// IsDeleted reports whether Delete has been called
func (e *Element) IsDeleted() bool {
	return e.isDeleted
}

// Feature resolves a feature of the element's type by name
func (e *Element) Feature(name string) (*meta.Feature, error) {
	return e.typ.ResolveFeature(name)
}

// Value returns the current value of f. f must belong to the element's type.
// Multi-valued references are returned as a []*Element snapshot.
func (e *Element) Value(f *meta.Feature) any {
	e.mustOwn(f)
	if f.IsMany() {
		return slices.Clone(e.items(f))
	}
	return e.values[f.Index]
}

// Assign sets f to value after checking it against the declared feature
// type. Strongly-typed setters, SetFeature, collection views and expression
// proxies all end up here.
func (e *Element) Assign(f *meta.Feature, value any) error {
	e.mustOwn(f)
	if f.IsMany() {
		items, err := e.coerceMany(f, value)
		if err != nil {
			return err
		}
		return e.replace(f, items)
	}
	if f.IsReference() {
		target, err := e.coerceElement(f, value)
		if err != nil {
			return err
		}
		if target == nil {
			return e.assign(f, nil)
		}
		return e.assign(f, target)
	}
	v, ok := f.CoerceAttribute(value)
	if !ok {
		return meta.Mismatch(e.typ, f, value)
	}
	return e.assign(f, v)
}

// Changing returns the event raised before f changes
func (e *Element) Changing(f *meta.Feature) *Event[ChangeEvent] {
	return &e.featureEvents(f).changing
}

// Changed returns the event raised after f changed
func (e *Element) Changed(f *meta.Feature) *Event[ChangeEvent] {
	return &e.featureEvents(f).changed
}

// PropertyChanging is raised before any feature changes, after the
// feature-specific Changing event
func (e *Element) PropertyChanging() *Event[ChangeEvent] {
	return &e.propertyChanging
}

// PropertyChanged is raised after any feature changed, after the
// feature-specific Changed event
func (e *Element) PropertyChanged() *Event[ChangeEvent] {
	return &e.propertyChanged
}

// Deleting is raised when Delete starts
func (e *Element) Deleting() *Event[LifecycleEvent] {
	return &e.deleting
}

// Deleted is raised when the element has been deleted. Every element holding
// a reference to this one is subscribed here.
func (e *Element) Deleted() *Event[LifecycleEvent] {
	return &e.deleted
}

// Delete removes the element from the graph. Holders of references to it
// reset those references; afterwards the element drops its own subscriptions
// and rejects further mutations. Deleting twice is a no-op.
func (e *Element) Delete() {
	if e.isDeleted {
		return
	}
	ev := LifecycleEvent{Element: e}
	e.deleting.fire(e, ev)
	e.isDeleted = true
	e.deleted.fire(e, ev)

	for i := range e.links {
		e.links[i].single.Unsubscribe()
		for _, sub := range e.links[i].many {
			sub.Unsubscribe()
		}
		e.links[i] = link{}
	}
}

// IsIdentified reports whether the element has a non-null identifying attribute
func (e *Element) IsIdentified() bool {
	_, ok := e.IdentifierString()
	return ok
}

// IdentifierString returns the textual form of the identifying attribute.
// ok is false when the type has no identifying attribute or its value is null.
func (e *Element) IdentifierString() (id string, ok bool) {
	f := e.typ.Identifier()
	if f == nil {
		return "", false
	}
	return formatIdentifier(e.values[f.Index])
}

func formatIdentifier(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return fmt.Sprint(v), true
	}
}

// String renders the element as "Dog fido", falling back to the structural id
func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	if id, ok := e.IdentifierString(); ok {
		return e.typ.Name + " " + id
	}
	return e.typ.Name + " #" + e.id.String()
}

func (e *Element) featureEvents(f *meta.Feature) *featureEvents {
	e.mustOwn(f)
	fe := e.events[f.Index]
	if fe == nil {
		fe = &featureEvents{}
		e.events[f.Index] = fe
	}
	return fe
}

func (e *Element) mustOwn(f *meta.Feature) {
	if !e.typ.Owns(f) {
		panic(fmt.Sprintf("model: feature %v does not belong to %s", f, e.typ.Name))
	}
}
