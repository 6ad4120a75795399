package model

import (
	"reflect"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// assign is the single mutation routine for attributes and single-valued
// references. v has already been coerced to the feature type.
func (e *Element) assign(f *meta.Feature, v any) error {
	if e.isDeleted {
		return errors.Wrapf(ErrDeleted, "cannot set %s on %s", f.Name, e)
	}
	old := e.values[f.Index]
	if old == v {
		return nil
	}
	e.write(ChangeEvent{Feature: f, Old: old, New: v}, v, func() {
		if f.IsReference() {
			e.relinkSingle(f, v)
		}
	})
	return nil
}

// replace is the mutation routine for multi-valued references. items is a
// fresh slice owned by the element from now on.
func (e *Element) replace(f *meta.Feature, items []*Element) error {
	if e.isDeleted {
		return errors.Wrapf(ErrDeleted, "cannot set %s on %s", f.Name, e)
	}
	old := e.items(f)
	if sameElements(old, items) {
		return nil
	}
	ev := ChangeEvent{Feature: f, Old: slices.Clone(old), New: slices.Clone(items)}
	e.write(ev, items, func() {
		e.relinkMany(f, old, items)
	})
	return nil
}

// write fires Changing, stores v, runs link and fires Changed. Subscribers
// of multi-valued features receive copies, never the stored slice.
func (e *Element) write(ev ChangeEvent, v any, link func()) {
	f := ev.Feature
	if fe := e.events[f.Index]; fe != nil {
		fe.changing.fire(e, ev)
	}
	e.propertyChanging.fire(e, ev)

	e.values[f.Index] = v
	link()

	if fe := e.events[f.Index]; fe != nil {
		fe.changed.fire(e, ev)
	}
	e.propertyChanged.fire(e, ev)
}

// relinkSingle moves the deletion subscription of f from the previous target
// to the new one
func (e *Element) relinkSingle(f *meta.Feature, v any) {
	l := &e.links[f.Index]
	l.single.Unsubscribe()
	l.single = nil
	if target, ok := v.(*Element); ok {
		l.single = target.deleted.Subscribe(func(sender *Element, _ LifecycleEvent) {
			e.onTargetDeleted(f, sender)
		})
	}
}

func (e *Element) relinkMany(f *meta.Feature, old, items []*Element) {
	l := &e.links[f.Index]
	keep := make(map[*Element]bool, len(items))
	for _, it := range items {
		keep[it] = true
	}
	for _, it := range old {
		if !keep[it] {
			l.many[it].Unsubscribe()
			delete(l.many, it)
		}
	}
	for _, it := range items {
		if _, ok := l.many[it]; ok {
			continue
		}
		if l.many == nil {
			l.many = make(map[*Element]*Subscription)
		}
		l.many[it] = it.deleted.Subscribe(func(sender *Element, _ LifecycleEvent) {
			e.onTargetDeleted(f, sender)
		})
	}
}

// onTargetDeleted resets a reference whose target was deleted through the
// regular mutation routine
func (e *Element) onTargetDeleted(f *meta.Feature, target *Element) {
	if e.isDeleted {
		return
	}
	if f.IsMany() {
		_ = e.replace(f, without(e.items(f), target))
		return
	}
	if e.values[f.Index] == any(target) {
		_ = e.assign(f, nil)
	}
}

func (e *Element) items(f *meta.Feature) []*Element {
	items, _ := e.values[f.Index].([]*Element)
	return items
}

func (e *Element) add(f *meta.Feature, target *Element) error {
	old := e.items(f)
	if f.Unique && indexOf(old, target) >= 0 {
		return nil
	}
	next := make([]*Element, 0, len(old)+1)
	next = append(next, old...)
	return e.replace(f, append(next, target))
}

func (e *Element) remove(f *meta.Feature, target *Element) (bool, error) {
	old := e.items(f)
	if indexOf(old, target) < 0 {
		return false, nil
	}
	if err := e.replace(f, without(old, target)); err != nil {
		return false, err
	}
	return true, nil
}

// coerceElement converts v to an element the reference feature f accepts
func (e *Element) coerceElement(f *meta.Feature, v any) (*Element, error) {
	var target *Element
	switch x := v.(type) {
	case nil:
		return nil, nil
	case *Element:
		target = x
	case ModelElement:
		target = x.ModelElement()
	default:
		return nil, meta.Mismatch(e.typ, f, v)
	}
	if target == nil {
		return nil, nil
	}
	if !f.Accepts(target.typ) {
		return nil, meta.Mismatch(e.typ, f, target)
	}
	if target.isDeleted {
		return nil, errors.Wrapf(ErrDeleted, "cannot reference %s from %s.%s", target, e.typ.Name, f.Name)
	}
	return target, nil
}

// coerceMany converts v to the new content of the multi-valued reference f.
// Accepted values are nil, any slice of ModelElement implementations and
// element collections. Null entries are dropped and, for unique features,
// repeated entries keep their first position.
func (e *Element) coerceMany(f *meta.Feature, v any) ([]*Element, error) {
	var raw []any
	switch x := v.(type) {
	case nil:
		return []*Element{}, nil
	case []*Element:
		raw = make([]any, len(x))
		for i, it := range x {
			raw[i] = it
		}
	case ElementCollection:
		for it := range x.All() {
			raw = append(raw, it)
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, meta.Mismatch(e.typ, f, v)
		}
		raw = make([]any, rv.Len())
		for i := range raw {
			raw[i] = rv.Index(i).Interface()
		}
	}

	items := make([]*Element, 0, len(raw))
	seen := make(map[*Element]bool, len(raw))
	for _, it := range raw {
		target, err := e.coerceElement(f, it)
		if err != nil {
			return nil, err
		}
		if target == nil || (f.Unique && seen[target]) {
			continue
		}
		seen[target] = true
		items = append(items, target)
	}
	return items, nil
}

func sameElements(a, b []*Element) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func indexOf(items []*Element, target *Element) int {
	for i, it := range items {
		if it == target {
			return i
		}
	}
	return -1
}

func without(items []*Element, target *Element) []*Element {
	out := make([]*Element, 0, len(items))
	for _, it := range items {
		if it != target {
			out = append(out, it)
		}
	}
	return out
}
