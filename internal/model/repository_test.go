package model

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

func TestRepository_CreateAndLookup(t *testing.T) {
	fx := newFixture(t)
	repo := NewRepository(fx.registry)

	dog, err := repo.Create(meta.TypeURI(testNS, "Dog"))
	require.NoError(t, err)
	require.NoError(t, dog.SetFeature("name", "fido"))

	found, err := repo.Lookup(meta.TypeURI(testNS, "Dog"), "fido")
	require.NoError(t, err)
	assert.Same(t, dog, found)

	found, err = repo.Lookup(meta.TypeURI(testNS, "Named"), "fido")
	require.NoError(t, err)
	assert.Same(t, dog, found, "lookup through a super type")

	_, err = repo.Lookup(meta.TypeURI(testNS, "Person"), "fido")
	assert.True(t, errors.Is(err, ErrDanglingResolution))

	_, err = repo.Lookup(meta.TypeURI(testNS, "Dog"), "rex")
	assert.True(t, errors.Is(err, ErrDanglingResolution))

	byID, ok := repo.ByID(dog.ID())
	assert.True(t, ok)
	assert.Same(t, dog, byID)

	_, err = repo.Create(meta.TypeURI(testNS, "Cat"))
	assert.True(t, errors.Is(err, meta.ErrUnknownType))
}

func TestRepository_RenameFollowsIdentifier(t *testing.T) {
	fx := newFixture(t)
	core, logs := observer.New(zapcore.WarnLevel)
	repo := NewRepository(fx.registry, WithLogger(zap.New(core)))

	fido := fx.newElement(t, fx.dog, "fido")
	rex := fx.newElement(t, fx.dog, "rex")
	require.NoError(t, repo.Add(fido, true))
	require.NoError(t, repo.Add(rex, false))

	require.NoError(t, fido.SetFeature("name", "bella"))
	_, err := repo.Lookup(meta.TypeURI(testNS, "Dog"), "fido")
	assert.True(t, errors.Is(err, ErrDanglingResolution))
	found, err := repo.Lookup(meta.TypeURI(testNS, "Dog"), "bella")
	require.NoError(t, err)
	assert.Same(t, fido, found)

	require.NoError(t, rex.SetFeature("name", "bella"))
	assert.Equal(t, 1, logs.FilterMessage("duplicate identifier").Len())
	found, err = repo.Lookup(meta.TypeURI(testNS, "Dog"), "bella")
	require.NoError(t, err)
	assert.Same(t, fido, found, "first holder keeps the identifier")
}

func TestRepository_QueuedHolderTakesOverIdentifier(t *testing.T) {
	fx := newFixture(t)
	repo := NewRepository(fx.registry)
	dogURI := meta.TypeURI(testNS, "Dog")

	tests := []struct {
		name    string
		release func(t *testing.T, holder *Element)
	}{
		{"holder renamed", func(t *testing.T, holder *Element) {
			require.NoError(t, holder.SetFeature("name", "max"))
		}},
		{"holder deleted", func(t *testing.T, holder *Element) {
			holder.Delete()
		}},
		{"holder removed", func(t *testing.T, holder *Element) {
			assert.True(t, repo.Remove(holder))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "fido-" + tt.name
			first := fx.newElement(t, fx.dog, id)
			second := fx.newElement(t, fx.dog, "other-"+tt.name)
			require.NoError(t, repo.Add(first, false))
			require.NoError(t, repo.Add(second, false))

			require.NoError(t, second.SetFeature("name", id))
			found, err := repo.Lookup(dogURI, id)
			require.NoError(t, err)
			assert.Same(t, first, found)

			tt.release(t, first)

			found, err = repo.Lookup(dogURI, id)
			require.NoError(t, err)
			assert.Same(t, second, found)
		})
	}

	t.Run("queued holder renamed away", func(t *testing.T) {
		first := fx.newElement(t, fx.dog, "luna")
		second := fx.newElement(t, fx.dog, "nala")
		require.NoError(t, repo.Add(first, false))
		require.NoError(t, repo.Add(second, false))

		require.NoError(t, second.SetFeature("name", "luna"))
		require.NoError(t, second.SetFeature("name", "kira"))
		require.NoError(t, first.SetFeature("name", "bo"))

		_, err := repo.Lookup(dogURI, "luna")
		assert.True(t, errors.Is(err, ErrDanglingResolution))
		found, err := repo.Lookup(dogURI, "kira")
		require.NoError(t, err)
		assert.Same(t, second, found)
	})
}

func TestRepository_DuplicateIdentifierOnAdd(t *testing.T) {
	fx := newFixture(t)
	repo := NewRepository(fx.registry)

	require.NoError(t, repo.Add(fx.newElement(t, fx.dog, "fido"), false))
	err := repo.Add(fx.newElement(t, fx.person, "fido"), false)
	assert.True(t, errors.Is(err, ErrDuplicateIdentifier), "Person and Dog share the Named identifier")
	assert.Equal(t, 1, repo.Len())
}

func TestRepository_DeletedElementsLeave(t *testing.T) {
	fx := newFixture(t)
	repo := NewRepository(fx.registry)

	dog := fx.newElement(t, fx.dog, "fido")
	alice := fx.newElement(t, fx.person, "alice")
	require.NoError(t, repo.AddRoot(dog))
	require.NoError(t, repo.Add(alice, false))
	require.NoError(t, dog.SetFeature("owner", alice))

	var removed []*Element
	repo.Removed().Subscribe(func(sender *Element, _ LifecycleEvent) { removed = append(removed, sender) })

	alice.Delete()

	assert.Equal(t, []*Element{alice}, removed)
	assert.False(t, repo.Contains(alice))
	assert.Equal(t, []*Element{dog}, repo.Elements())
	assert.Equal(t, []*Element{dog}, repo.Roots())
	assert.True(t, repo.IsRoot(dog))
	owner, _ := dog.Reference("owner")
	assert.Nil(t, owner)

	_, err := repo.Lookup(meta.TypeURI(testNS, "Person"), "alice")
	assert.True(t, errors.Is(err, ErrDanglingResolution))

	err = repo.Add(alice, false)
	assert.True(t, errors.Is(err, ErrDeleted))
}

func TestRepository_AddTwiceAndRemove(t *testing.T) {
	fx := newFixture(t)
	repo := NewRepository(fx.registry)
	dog := fx.newElement(t, fx.dog, "fido")

	var added int
	repo.Added().Subscribe(func(*Element, LifecycleEvent) { added++ })

	require.NoError(t, repo.Add(dog, false))
	require.NoError(t, repo.Add(dog, true))
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, repo.Len())
	assert.True(t, repo.IsRoot(dog))

	assert.True(t, repo.Remove(dog))
	assert.False(t, repo.Remove(dog))
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, 0, dog.Deleted().Len())
	assert.False(t, dog.IsDeleted())

	assert.Len(t, repo.OfType(fx.dog), 0)
	require.NoError(t, repo.Add(dog, false))
	assert.Equal(t, []*Element{dog}, repo.OfType(fx.dog))
}
