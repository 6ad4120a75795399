package model

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Repository holds the elements of one model. It resolves type descriptors
// through its registry and keeps an identifier index per type hierarchy so
// persisted references can be resolved back to live elements.
//
// Elements leave the repository when they are deleted.
type Repository struct {
	registry *meta.Registry
	logger   *zap.Logger

	elements []*Element
	byID     map[uuid.UUID]*Element
	roots    map[*Element]bool
	index    map[string]map[string][]*Element
	subs     map[*Element][]*Subscription

	added   Event[LifecycleEvent]
	removed Event[LifecycleEvent]
}

// Option configures a Repository
type Option func(*Repository)

// WithLogger sets the logger used for resolution and index diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRepository creates an empty repository resolving types through reg
func NewRepository(reg *meta.Registry, opts ...Option) *Repository {
	r := &Repository{
		registry: reg,
		logger:   zap.NewNop(),
		byID:     make(map[uuid.UUID]*Element),
		roots:    make(map[*Element]bool),
		index:    make(map[string]map[string][]*Element),
		subs:     make(map[*Element][]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the repository resolves types through
func (r *Repository) Registry() *meta.Registry {
	return r.registry
}

// Resolve returns the descriptor of the type identified by uri
func (r *Repository) Resolve(uri string) (*meta.EntityType, error) {
	t, err := r.registry.Resolve(uri)
	if err != nil {
		r.logger.Debug("type resolution failed", zap.String("uri", uri), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// Create instantiates the type identified by uri and adds the element
func (r *Repository) Create(uri string) (*Element, error) {
	t, err := r.Resolve(uri)
	if err != nil {
		return nil, err
	}
	el, err := NewFactory(t).New()
	if err != nil {
		return nil, err
	}
	if err := r.Add(el, false); err != nil {
		return nil, err
	}
	return el, nil
}

// Add registers an element, optionally as a root. Adding an element twice
// only updates its root flag.
func (r *Repository) Add(item ModelElement, root bool) error {
	el := unwrap(item)
	if el == nil {
		return errors.New("cannot add a nil element")
	}
	if el.isDeleted {
		return errors.Wrapf(ErrDeleted, "cannot add %s", el)
	}
	if r.Contains(el) {
		if root {
			r.roots[el] = true
		}
		return nil
	}

	if id, ok := el.IdentifierString(); ok {
		if existing := r.indexed(el.typ, id); existing != nil {
			return errors.WithHint(
				errors.Wrapf(ErrDuplicateIdentifier, "%s already holds identifier %q", existing, id),
				"identifiers must be unique within a type hierarchy")
		}
		r.indexPut(el.typ, id, el)
	}

	r.elements = append(r.elements, el)
	r.byID[el.id] = el
	if root {
		r.roots[el] = true
	}

	subs := []*Subscription{
		el.Deleted().Subscribe(func(sender *Element, _ LifecycleEvent) {
			r.forget(sender)
		}),
	}
	if f := el.typ.Identifier(); f != nil {
		subs = append(subs, el.Changed(f).Subscribe(func(sender *Element, ev ChangeEvent) {
			r.reindex(sender, ev)
		}))
	}
	r.subs[el] = subs

	r.added.fire(el, LifecycleEvent{Element: el})
	return nil
}

// AddRoot adds an element as a root of the model
func (r *Repository) AddRoot(item ModelElement) error {
	return r.Add(item, true)
}

// Remove detaches an element from the repository without deleting it
func (r *Repository) Remove(item ModelElement) bool {
	el := unwrap(item)
	if !r.Contains(el) {
		return false
	}
	r.forget(el)
	return true
}

// Lookup finds the element of type uri, or one of its subtypes, holding
// identifier id
func (r *Repository) Lookup(uri, id string) (*Element, error) {
	t, err := r.Resolve(uri)
	if err != nil {
		return nil, err
	}
	if el := r.indexed(t, id); el != nil && el.typ.Conforms(t) {
		return el, nil
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrDanglingResolution, "no %s with identifier %q", t.Name, id),
		"the referenced element must be part of the same repository")
}

// ByID returns the element with the given structural identity
func (r *Repository) ByID(id uuid.UUID) (*Element, bool) {
	el, ok := r.byID[id]
	return el, ok
}

// Contains reports whether the element belongs to the repository
func (r *Repository) Contains(item ModelElement) bool {
	el := unwrap(item)
	if el == nil {
		return false
	}
	return r.byID[el.id] == el
}

// IsRoot reports whether the element was added as a root
func (r *Repository) IsRoot(item ModelElement) bool {
	return r.roots[unwrap(item)]
}

// Elements returns the elements in insertion order
func (r *Repository) Elements() []*Element {
	return slices.Clone(r.elements)
}

// Roots returns the root elements in insertion order
func (r *Repository) Roots() []*Element {
	roots := make([]*Element, 0, len(r.roots))
	for _, el := range r.elements {
		if r.roots[el] {
			roots = append(roots, el)
		}
	}
	return roots
}

// OfType returns the elements conforming to t in insertion order
func (r *Repository) OfType(t *meta.EntityType) []*Element {
	var out []*Element
	for _, el := range r.elements {
		if el.typ.Conforms(t) {
			out = append(out, el)
		}
	}
	return out
}

// Len returns the number of elements
func (r *Repository) Len() int {
	return len(r.elements)
}

// Added is raised after an element joined the repository
func (r *Repository) Added() *Event[LifecycleEvent] {
	return &r.added
}

// Removed is raised after an element left the repository
func (r *Repository) Removed() *Event[LifecycleEvent] {
	return &r.removed
}

func (r *Repository) forget(el *Element) {
	for _, sub := range r.subs[el] {
		sub.Unsubscribe()
	}
	delete(r.subs, el)

	if id, ok := el.IdentifierString(); ok {
		r.indexDrop(el.typ, id, el)
	}
	delete(r.byID, el.id)
	delete(r.roots, el)
	r.elements = slices.DeleteFunc(r.elements, func(x *Element) bool { return x == el })

	r.logger.Debug("element removed", zap.Stringer("element", el))
	r.removed.fire(el, LifecycleEvent{Element: el})
}

// reindex follows changes of the identifying attribute. A rename onto an
// identifier that is already taken queues the element behind the current
// holder; it takes over the identifier once the holder leaves it.
func (r *Repository) reindex(el *Element, ev ChangeEvent) {
	if old, ok := formatIdentifier(ev.Old); ok {
		r.indexDrop(el.typ, old, el)
	}
	id, ok := formatIdentifier(ev.New)
	if !ok {
		return
	}
	if existing := r.indexed(el.typ, id); existing != nil && existing != el {
		r.logger.Warn("duplicate identifier",
			zap.String("type", el.typ.Name),
			zap.String("identifier", id),
			zap.Stringer("holder", existing))
	}
	r.indexPut(el.typ, id, el)
}

// indexed returns the element currently resolving identifier id
func (r *Repository) indexed(t *meta.EntityType, id string) *Element {
	if holders := r.index[indexKey(t)][id]; len(holders) > 0 {
		return holders[0]
	}
	return nil
}

func (r *Repository) indexPut(t *meta.EntityType, id string, el *Element) {
	key := indexKey(t)
	m, ok := r.index[key]
	if !ok {
		m = make(map[string][]*Element)
		r.index[key] = m
	}
	if !slices.Contains(m[id], el) {
		m[id] = append(m[id], el)
	}
}

func (r *Repository) indexDrop(t *meta.EntityType, id string, el *Element) {
	m := r.index[indexKey(t)]
	holders := slices.DeleteFunc(m[id], func(x *Element) bool { return x == el })
	if len(holders) == 0 {
		delete(m, id)
		return
	}
	m[id] = holders
}

// indexKey scopes identifiers to the type declaring the identifying
// attribute, so subtypes share one namespace
func indexKey(t *meta.EntityType) string {
	if f := t.Identifier(); f != nil {
		return f.Owner.URI
	}
	return t.URI
}
