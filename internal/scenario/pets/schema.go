// Package pets provides the pets metamodel in two versions and
// strongly-typed entities for version 2, written in the shape of generated
// model classes on top of the generic model element.
package pets

import (
	_ "embed"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

const (
	// NamespaceV1 is the namespace of the version where persons list their dogs
	NamespaceV1 = "http://ttc2020/model/scenario4/1.0"

	// NamespaceV2 is the namespace of the version where dogs reference their owner
	NamespaceV2 = "http://ttc2020/model/scenario4/2.0"
)

//go:embed metamodel.yaml
var metamodelYAML []byte

// Metamodel returns the declarations of both versions
func Metamodel() (*meta.Metamodel, error) {
	return meta.ParseMetamodel(metamodelYAML)
}

// Declare registers both versions on reg
func Declare(reg *meta.Registry) error {
	m, err := Metamodel()
	if err != nil {
		return err
	}
	return reg.DeclareMetamodel(m)
}

// Schema binds the version 2 descriptors and features the typed entities
// use. It is resolved once from a registry and shared by all wrappers.
type Schema struct {
	Person    *meta.EntityType
	Dog       *meta.EntityType
	Container *meta.EntityType

	personName       *meta.Feature
	dogName          *meta.Feature
	dogOwner         *meta.Feature
	containerPersons *meta.Feature
	containerDogs    *meta.Feature
}

// Bind resolves the version 2 types from reg. Version 2 must have been
// declared, usually through Declare.
func Bind(reg *meta.Registry) (*Schema, error) {
	s := &Schema{}
	var err error
	if s.Person, err = reg.Resolve(meta.TypeURI(NamespaceV2, "Person")); err != nil {
		return nil, errors.Wrap(err, "bind pets schema")
	}
	if s.Dog, err = reg.Resolve(meta.TypeURI(NamespaceV2, "Dog")); err != nil {
		return nil, errors.Wrap(err, "bind pets schema")
	}
	if s.Container, err = reg.Resolve(meta.TypeURI(NamespaceV2, "Container")); err != nil {
		return nil, errors.Wrap(err, "bind pets schema")
	}

	features := []struct {
		t    *meta.EntityType
		name string
		dst  **meta.Feature
	}{
		{s.Person, "name", &s.personName},
		{s.Dog, "name", &s.dogName},
		{s.Dog, "owner", &s.dogOwner},
		{s.Container, "persons", &s.containerPersons},
		{s.Container, "dogs", &s.containerDogs},
	}
	for _, f := range features {
		if *f.dst, err = f.t.ResolveFeature(f.name); err != nil {
			return nil, errors.Wrap(err, "bind pets schema")
		}
	}
	return s, nil
}

// NewPerson creates a person named name
func (s *Schema) NewPerson(name string) (*Person, error) {
	el, err := model.NewFactory(s.Person).New()
	if err != nil {
		return nil, err
	}
	p := &Person{element: el, schema: s}
	if name != "" {
		if err := p.SetName(name); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewDog creates a dog named name
func (s *Schema) NewDog(name string) (*Dog, error) {
	el, err := model.NewFactory(s.Dog).New()
	if err != nil {
		return nil, err
	}
	d := &Dog{element: el, schema: s}
	if name != "" {
		if err := d.SetName(name); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewContainer creates an empty container
func (s *Schema) NewContainer() (*Container, error) {
	el, err := model.NewFactory(s.Container).New()
	if err != nil {
		return nil, err
	}
	return &Container{element: el, schema: s}, nil
}

// AsPerson wraps el if it is a version 2 person
func (s *Schema) AsPerson(el model.ModelElement) (*Person, bool) {
	if e := unwrap(el); e != nil && e.Type().Conforms(s.Person) {
		return &Person{element: e, schema: s}, true
	}
	return nil, false
}

// AsDog wraps el if it is a version 2 dog
func (s *Schema) AsDog(el model.ModelElement) (*Dog, bool) {
	if e := unwrap(el); e != nil && e.Type().Conforms(s.Dog) {
		return &Dog{element: e, schema: s}, true
	}
	return nil, false
}

// AsContainer wraps el if it is a version 2 container
func (s *Schema) AsContainer(el model.ModelElement) (*Container, bool) {
	if e := unwrap(el); e != nil && e.Type().Conforms(s.Container) {
		return &Container{element: e, schema: s}, true
	}
	return nil, false
}

func unwrap(el model.ModelElement) *model.Element {
	if el == nil {
		return nil
	}
	return el.ModelElement()
}

func stringValue(el *model.Element, f *meta.Feature) string {
	s, _ := el.Value(f).(string)
	return s
}
