package pets

import (
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Dog is the typed view of a version 2 dog
type Dog struct {
	element *model.Element
	schema  *Schema
}

// ModelElement returns the underlying element
func (d *Dog) ModelElement() *model.Element {
	if d == nil {
		return nil
	}
	return d.element
}

// Type returns the entity type of the dog
func (d *Dog) Type() *meta.EntityType {
	return d.ModelElement().Type()
}

// Name returns the name of the dog
func (d *Dog) Name() string {
	return stringValue(d.element, d.schema.dogName)
}

// SetName renames the dog
func (d *Dog) SetName(name string) error {
	return d.element.Assign(d.schema.dogName, name)
}

// Owner returns the owner of the dog, or nil
func (d *Dog) Owner() *Person {
	p, _ := d.schema.AsPerson(refValue(d.element.Value(d.schema.dogOwner)))
	return p
}

// SetOwner changes the owner of the dog. The dog follows the deletion of its
// owner by dropping the reference.
func (d *Dog) SetOwner(owner *Person) error {
	return d.element.Assign(d.schema.dogOwner, owner)
}

// NameChanging is raised before the name changes
func (d *Dog) NameChanging() *model.Event[model.ChangeEvent] {
	return d.element.Changing(d.schema.dogName)
}

// NameChanged is raised after the name changed
func (d *Dog) NameChanged() *model.Event[model.ChangeEvent] {
	return d.element.Changed(d.schema.dogName)
}

// OwnerChanging is raised before the owner changes
func (d *Dog) OwnerChanging() *model.Event[model.ChangeEvent] {
	return d.element.Changing(d.schema.dogOwner)
}

// OwnerChanged is raised after the owner changed
func (d *Dog) OwnerChanged() *model.Event[model.ChangeEvent] {
	return d.element.Changed(d.schema.dogOwner)
}

// NameProxy returns a live handle on the name
func (d *Dog) NameProxy() *model.Proxy {
	return model.NewProxy(d.element, d.schema.dogName)
}

// OwnerProxy returns a live handle on the owner
func (d *Dog) OwnerProxy() *model.Proxy {
	return model.NewProxy(d.element, d.schema.dogOwner)
}

// OwnerView returns the owner reference as a collection of at most one person
func (d *Dog) OwnerView() *model.SingletonView {
	v, _ := model.NewSingletonView(d.element, d.schema.dogOwner.Name)
	return v
}

// Delete deletes the dog
func (d *Dog) Delete() {
	d.element.Delete()
}

func (d *Dog) String() string {
	return d.element.String()
}

func refValue(v any) model.ModelElement {
	el, _ := v.(*model.Element)
	if el == nil {
		return nil
	}
	return el
}
