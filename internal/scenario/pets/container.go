package pets

import (
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Container is the root of a version 2 pets model
type Container struct {
	element *model.Element
	schema  *Schema
}

// ModelElement returns the underlying element
func (c *Container) ModelElement() *model.Element {
	if c == nil {
		return nil
	}
	return c.element
}

// Type returns the entity type of the container
func (c *Container) Type() *meta.EntityType {
	return c.ModelElement().Type()
}

// Persons returns the persons of the model
func (c *Container) Persons() *model.Collection {
	v, _ := c.element.Collection(c.schema.containerPersons.Name)
	return v
}

// Dogs returns the dogs of the model
func (c *Container) Dogs() *model.Collection {
	v, _ := c.element.Collection(c.schema.containerDogs.Name)
	return v
}

// DogEntry names a dog and its owner; an empty owner leaves the dog
// without one
type DogEntry struct {
	Name  string
	Owner string
}

// Populate creates a container in repo holding the given owners and dogs
func (s *Schema) Populate(repo *model.Repository, owners []string, dogs []DogEntry) (*Container, error) {
	c, err := s.NewContainer()
	if err != nil {
		return nil, err
	}
	if err := repo.AddRoot(c); err != nil {
		return nil, err
	}

	byName := make(map[string]*Person, len(owners))
	for _, name := range owners {
		p, err := s.NewPerson(name)
		if err != nil {
			return nil, err
		}
		if err := repo.Add(p, false); err != nil {
			return nil, err
		}
		if err := c.Persons().Add(p); err != nil {
			return nil, err
		}
		byName[name] = p
	}

	for _, entry := range dogs {
		d, err := s.NewDog(entry.Name)
		if err != nil {
			return nil, err
		}
		if err := repo.Add(d, false); err != nil {
			return nil, err
		}
		if err := c.Dogs().Add(d); err != nil {
			return nil, err
		}
		if owner := byName[entry.Owner]; owner != nil {
			if err := d.SetOwner(owner); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}
