package pets

import (
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Person is the typed view of a version 2 person
type Person struct {
	element *model.Element
	schema  *Schema
}

// ModelElement returns the underlying element
func (p *Person) ModelElement() *model.Element {
	if p == nil {
		return nil
	}
	return p.element
}

// Type returns the entity type of the person
func (p *Person) Type() *meta.EntityType {
	return p.ModelElement().Type()
}

// Name returns the name of the person
func (p *Person) Name() string {
	return stringValue(p.element, p.schema.personName)
}

// SetName renames the person
func (p *Person) SetName(name string) error {
	return p.element.Assign(p.schema.personName, name)
}

// NameChanged is raised after the name changed
func (p *Person) NameChanged() *model.Event[model.ChangeEvent] {
	return p.element.Changed(p.schema.personName)
}

// Deleted is raised when the person is deleted
func (p *Person) Deleted() *model.Event[model.LifecycleEvent] {
	return p.element.Deleted()
}

// Delete deletes the person. Dogs owned by the person lose their owner.
func (p *Person) Delete() {
	p.element.Delete()
}

func (p *Person) String() string {
	return p.element.String()
}
