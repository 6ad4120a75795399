package model

import (
	"iter"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// ElementCollection is the collection interface shared by views over single-
// and multi-valued references. Counts and membership are always computed
// from the live feature value.
type ElementCollection interface {
	Len() int
	Contains(item ModelElement) bool
	Add(item ModelElement) error
	Remove(item ModelElement) (bool, error)
	Clear() error
	CopyTo(dst []*Element, at int) int
	All() iter.Seq[*Element]

	// Subscribe registers fn for changes of the underlying feature. The view
	// attaches to the feature's Changed event on the first subscription and
	// detaches when the last one is cancelled or the view is released.
	Subscribe(fn Handler[ChangeEvent]) *Subscription
	Release()
	IsAttached() bool
}

type view struct {
	owner   *Element
	feature *meta.Feature
	changed relay[ChangeEvent]
}

func (v *view) init(owner *Element, f *meta.Feature) {
	v.owner = owner
	v.feature = f
	v.changed.source = func(fn Handler[ChangeEvent]) *Subscription {
		return owner.Changed(f).Subscribe(fn)
	}
}

// Owner returns the element holding the viewed reference
func (v *view) Owner() *Element { return v.owner }

// Feature returns the viewed reference feature
func (v *view) Feature() *meta.Feature { return v.feature }

func (v *view) Subscribe(fn Handler[ChangeEvent]) *Subscription {
	return v.changed.subscribe(fn)
}

func (v *view) Release() { v.changed.release() }

func (v *view) IsAttached() bool { return v.changed.attached() }

// SingletonView exposes a single-valued reference as a collection of at most
// one element.
//
// Add only fills an empty slot with an element of the target type. Adding to
// an occupied slot, adding nil or adding an element of another type is a
// silent no-op, so generic graph code can add to singleton slots without
// special-casing them.
type SingletonView struct {
	view
}

func newSingletonView(owner *Element, f *meta.Feature) *SingletonView {
	s := &SingletonView{}
	s.init(owner, f)
	return s
}

// NewSingletonView returns a view over the single-valued reference name
func NewSingletonView(owner *Element, name string) (*SingletonView, error) {
	f, err := owner.Feature(name)
	if err != nil {
		return nil, err
	}
	if f.Kind != meta.KindReference {
		return nil, owner.wrongKind(f, meta.KindReference, "use Element.Collection for multi-valued references")
	}
	return newSingletonView(owner, f), nil
}

func (s *SingletonView) current() *Element {
	target, _ := s.owner.values[s.feature.Index].(*Element)
	return target
}

// Len returns 1 when the reference is set
func (s *SingletonView) Len() int {
	if s.current() == nil {
		return 0
	}
	return 1
}

// Contains reports whether item is the current target
func (s *SingletonView) Contains(item ModelElement) bool {
	target := unwrap(item)
	return target != nil && target == s.current()
}

// Add sets the reference to item if it is empty
func (s *SingletonView) Add(item ModelElement) error {
	target := unwrap(item)
	if target == nil || s.current() != nil || !s.feature.Accepts(target.typ) {
		return nil
	}
	return s.owner.Assign(s.feature, target)
}

// Remove clears the reference if it currently points to item
func (s *SingletonView) Remove(item ModelElement) (bool, error) {
	target := unwrap(item)
	if target == nil || target != s.current() {
		return false, nil
	}
	if err := s.owner.assign(s.feature, nil); err != nil {
		return false, err
	}
	return true, nil
}

// Clear resets the reference
func (s *SingletonView) Clear() error {
	return s.owner.assign(s.feature, nil)
}

// CopyTo writes the current target to dst[at] and returns the number of
// elements written
func (s *SingletonView) CopyTo(dst []*Element, at int) int {
	target := s.current()
	if target == nil {
		return 0
	}
	dst[at] = target
	return 1
}

// All yields the current target, if any
func (s *SingletonView) All() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		if target := s.current(); target != nil {
			yield(target)
		}
	}
}

// Collection is a view over a multi-valued reference. Unlike SingletonView it
// reports elements of the wrong type as errors. Adding an element already in
// a unique collection is a no-op.
type Collection struct {
	view
}

func newCollection(owner *Element, f *meta.Feature) *Collection {
	c := &Collection{}
	c.init(owner, f)
	return c
}

// Len returns the number of elements
func (c *Collection) Len() int {
	return len(c.owner.items(c.feature))
}

// At returns the element at position i
func (c *Collection) At(i int) *Element {
	return c.owner.items(c.feature)[i]
}

// Slice returns a copy of the content
func (c *Collection) Slice() []*Element {
	items := c.owner.items(c.feature)
	out := make([]*Element, len(items))
	copy(out, items)
	return out
}

// Contains reports whether item is in the collection
func (c *Collection) Contains(item ModelElement) bool {
	target := unwrap(item)
	return target != nil && indexOf(c.owner.items(c.feature), target) >= 0
}

// Add appends item
func (c *Collection) Add(item ModelElement) error {
	target, err := c.owner.coerceElement(c.feature, item)
	if err != nil || target == nil {
		return err
	}
	return c.owner.add(c.feature, target)
}

// Remove removes every occurrence of item and reports whether it was present
func (c *Collection) Remove(item ModelElement) (bool, error) {
	target := unwrap(item)
	if target == nil {
		return false, nil
	}
	return c.owner.remove(c.feature, target)
}

// Clear empties the collection
func (c *Collection) Clear() error {
	return c.owner.replace(c.feature, []*Element{})
}

// CopyTo copies the content into dst starting at at and returns the number
// of elements copied
func (c *Collection) CopyTo(dst []*Element, at int) int {
	return copy(dst[at:], c.owner.items(c.feature))
}

// All yields the content as of the start of the iteration
func (c *Collection) All() iter.Seq[*Element] {
	return func(yield func(*Element) bool) {
		for _, it := range c.owner.items(c.feature) {
			if !yield(it) {
				return
			}
		}
	}
}

func unwrap(item ModelElement) *Element {
	if item == nil {
		return nil
	}
	return item.ModelElement()
}
