package transform

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Copy makes the target model a copy of the source model. Elements keep
// their structural id, features are matched by name.
type Copy struct {
	mirror *mirror
}

// NewCopy creates a copy transformation
func NewCopy() *Copy {
	return &Copy{mirror: newMirror(sameType)}
}

// Name implements Transformation
func (c *Copy) Name() string { return "copy" }

// Initialize implements Transformation
func (c *Copy) Initialize() error {
	c.mirror.reset()
	return nil
}

// Synchronize implements Transformation
func (c *Copy) Synchronize(ctx context.Context, left, right *model.Repository, dir Direction) error {
	src, dst := sides(left, right, dir)
	return c.mirror.sync(ctx, src, dst, dir)
}

// Counterpart returns the element el is paired with, if any
func (c *Copy) Counterpart(el *model.Element) (*model.Element, bool) {
	return c.mirror.counterpartOf(el)
}

func sides(left, right *model.Repository, dir Direction) (src, dst *model.Repository) {
	if dir == RightToLeft {
		return right, left
	}
	return left, right
}

// typeMapper maps a source type to the type its counterpart has in dst
type typeMapper func(src *meta.EntityType, dst *model.Repository, dir Direction) (*meta.EntityType, error)

func sameType(src *meta.EntityType, dst *model.Repository, _ Direction) (*meta.EntityType, error) {
	return dst.Resolve(src.URI)
}

// mirror keeps the elements of a target repository in step with a source
// repository. Pairs are remembered across calls in both directions.
type mirror struct {
	mapType typeMapper
	trace   map[*model.Element]*model.Element
}

func newMirror(mapType typeMapper) *mirror {
	return &mirror{mapType: mapType, trace: make(map[*model.Element]*model.Element)}
}

func (m *mirror) reset() {
	clear(m.trace)
}

func (m *mirror) pair(a, b *model.Element) {
	m.trace[a] = b
	m.trace[b] = a
}

func (m *mirror) counterpartOf(el *model.Element) (*model.Element, bool) {
	other, ok := m.trace[el]
	if !ok || other.IsDeleted() {
		return nil, false
	}
	return other, true
}

// sync pairs every source element with a target element, copies the
// features both types share and deletes target elements left unpaired
func (m *mirror) sync(ctx context.Context, src, dst *model.Repository, dir Direction) error {
	paired := make(map[*model.Element]bool, src.Len())
	for _, s := range src.Elements() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d, err := m.counterpart(s, src, dst, dir)
		if err != nil {
			return err
		}
		paired[d] = true
	}

	for _, s := range src.Elements() {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := m.trace[s]
		if err := m.copyAttributes(s, d); err != nil {
			return err
		}
		if err := m.copyReferences(s, d); err != nil {
			return err
		}
	}

	for _, d := range dst.Elements() {
		if !paired[d] {
			d.Delete()
		}
	}
	return nil
}

func (m *mirror) counterpart(s *model.Element, src, dst *model.Repository, dir Direction) (*model.Element, error) {
	if d, ok := m.counterpartOf(s); ok && dst.Contains(d) {
		if src.IsRoot(s) && !dst.IsRoot(d) {
			return d, dst.AddRoot(d)
		}
		return d, nil
	}

	t, err := m.mapType(s.Type(), dst, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "no counterpart type for %s", s)
	}

	if id, ok := s.IdentifierString(); ok {
		if d, err := dst.Lookup(t.URI, id); err == nil {
			m.pair(s, d)
			return d, nil
		}
	}
	if d, ok := dst.ByID(s.ID()); ok && d.Type() == t {
		m.pair(s, d)
		return d, nil
	}

	d, err := model.NewFactory(t).NewWithID(s.ID())
	if err != nil {
		return nil, err
	}
	// the identifier has to be in place before the element is indexed
	if err := m.copyAttributes(s, d); err != nil {
		return nil, err
	}
	if err := dst.Add(d, src.IsRoot(s)); err != nil {
		return nil, errors.Wrapf(err, "cannot mirror %s", s)
	}
	m.pair(s, d)
	return d, nil
}

// shared returns the feature of src matching f by name and kind
func shared(src *meta.EntityType, f *meta.Feature) (*meta.Feature, bool) {
	sf, ok := src.Lookup(f.Name)
	if !ok || sf.Kind != f.Kind {
		return nil, false
	}
	if !f.IsReference() && sf.Type != f.Type {
		return nil, false
	}
	return sf, true
}

func (m *mirror) copyAttributes(s, d *model.Element) error {
	for _, f := range d.Type().AllFeatures() {
		if f.IsReference() {
			continue
		}
		sf, ok := shared(s.Type(), f)
		if !ok {
			continue
		}
		want, err := s.GetAttribute(sf.Name)
		if err != nil {
			return err
		}
		have, err := d.GetAttribute(f.Name)
		if err != nil {
			return err
		}
		if have == want {
			continue
		}
		if err := d.SetFeature(f.Name, want); err != nil {
			return err
		}
	}
	return nil
}

func (m *mirror) copyReferences(s, d *model.Element) error {
	for _, f := range d.Type().References() {
		sf, ok := shared(s.Type(), f)
		if !ok {
			continue
		}
		if f.IsMany() {
			if err := m.copyMany(s, d, sf, f); err != nil {
				return err
			}
			continue
		}

		target, err := s.Reference(sf.Name)
		if err != nil {
			return err
		}
		want := m.mapped(target)
		have, err := d.Reference(f.Name)
		if err != nil {
			return err
		}
		if have == want {
			continue
		}
		if err := d.SetFeature(f.Name, want); err != nil {
			return err
		}
	}
	return nil
}

func (m *mirror) copyMany(s, d *model.Element, sf, f *meta.Feature) error {
	source, err := s.Collection(sf.Name)
	if err != nil {
		return err
	}
	want := make([]*model.Element, 0, source.Len())
	for target := range source.All() {
		if mapped := m.mapped(target); mapped != nil {
			want = append(want, mapped)
		}
	}

	current, err := d.Collection(f.Name)
	if err != nil {
		return err
	}
	if slices.Equal(current.Slice(), want) {
		return nil
	}
	return d.SetFeature(f.Name, want)
}

func (m *mirror) mapped(el *model.Element) *model.Element {
	if el == nil {
		return nil
	}
	other, _ := m.counterpartOf(el)
	return other
}
