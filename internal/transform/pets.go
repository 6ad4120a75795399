package transform

import (
	"context"
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
	"github.com/modelgraph/modelgraph/internal/scenario/pets"
)

// Pets synchronizes a version 1 pets model (left, persons list their dogs)
// with a version 2 model (right, dogs reference their owner). Names and
// container contents are mirrored; ownership is converted between the two
// representations.
type Pets struct {
	mirror *mirror
}

// NewPets creates the pets transformation
func NewPets() *Pets {
	return &Pets{mirror: newMirror(petsType)}
}

// Name implements Transformation
func (p *Pets) Name() string { return "pets" }

// Initialize implements Transformation
func (p *Pets) Initialize() error {
	p.mirror.reset()
	return nil
}

// Synchronize implements Transformation
func (p *Pets) Synchronize(ctx context.Context, left, right *model.Repository, dir Direction) error {
	src, dst := sides(left, right, dir)
	if err := p.mirror.sync(ctx, src, dst, dir); err != nil {
		return err
	}
	if dir == LeftToRight {
		return p.ownersFromDogLists(src, dst)
	}
	return p.dogListsFromOwners(src, dst)
}

func petsType(src *meta.EntityType, dst *model.Repository, dir Direction) (*meta.EntityType, error) {
	from, to := pets.NamespaceV1, pets.NamespaceV2
	if dir == RightToLeft {
		from, to = to, from
	}
	ns, name, ok := meta.SplitTypeURI(src.URI)
	if !ok || ns != from {
		return nil, errors.WithHint(
			errors.Newf("%s is not a type of %s", src.URI, from),
			"the left model must use pets version 1 and the right model version 2")
	}
	return dst.Resolve(meta.TypeURI(to, name))
}

// ownersFromDogLists sets the owner of every version 2 dog to the person
// listing it. A dog listed by several persons belongs to the first one.
func (p *Pets) ownersFromDogLists(v1, v2 *model.Repository) error {
	owners := make(map[*model.Element]*model.Element)
	for _, person := range ofKind(v1, pets.NamespaceV1, "Person") {
		dogs, err := person.Collection("dogs")
		if err != nil {
			return err
		}
		owner := p.mirror.mapped(person)
		for dog := range dogs.All() {
			if mapped := p.mirror.mapped(dog); mapped != nil && owners[mapped] == nil {
				owners[mapped] = owner
			}
		}
	}

	for _, dog := range ofKind(v2, pets.NamespaceV2, "Dog") {
		have, err := dog.Reference("owner")
		if err != nil {
			return err
		}
		if want := owners[dog]; have != want {
			if err := dog.SetFeature("owner", want); err != nil {
				return err
			}
		}
	}
	return nil
}

// dogListsFromOwners rebuilds the dog list of every version 1 person from
// the owners of the version 2 dogs. Dogs that stay with their owner keep
// their position in the list.
func (p *Pets) dogListsFromOwners(v2, v1 *model.Repository) error {
	owned := make(map[*model.Element][]*model.Element)
	for _, dog := range ofKind(v2, pets.NamespaceV2, "Dog") {
		owner, err := dog.Reference("owner")
		if err != nil {
			return err
		}
		if owner == nil {
			continue
		}
		person, mappedDog := p.mirror.mapped(owner), p.mirror.mapped(dog)
		if person != nil && mappedDog != nil {
			owned[person] = append(owned[person], mappedDog)
		}
	}

	for _, person := range ofKind(v1, pets.NamespaceV1, "Person") {
		dogs, err := person.Collection("dogs")
		if err != nil {
			return err
		}
		want := owned[person]
		have := dogs.Slice()

		merged := make([]*model.Element, 0, len(want))
		for _, dog := range have {
			if slices.Contains(want, dog) {
				merged = append(merged, dog)
			}
		}
		for _, dog := range want {
			if !slices.Contains(merged, dog) {
				merged = append(merged, dog)
			}
		}
		if slices.Equal(have, merged) {
			continue
		}
		if err := person.SetFeature("dogs", merged); err != nil {
			return err
		}
	}
	return nil
}

func ofKind(repo *model.Repository, namespace, name string) []*model.Element {
	t, err := repo.Resolve(meta.TypeURI(namespace, name))
	if err != nil {
		return nil
	}
	return repo.OfType(t)
}
