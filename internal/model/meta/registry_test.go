package meta

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNS = "http://ttc2020/model/scenario4/2.0"

const testMetamodel = `
packages:
  - namespace: http://ttc2020/model/scenario4/2.0
    types:
      - name: Named
        abstract: true
        features:
          - {name: name, type: string, id: true}
      - name: Person
        extends: Named
        features:
          - {name: age, type: int}
      - name: Dog
        extends: Named
        features:
          - {name: owner, kind: reference, target: Person}
          - {name: friends, kind: references, target: Dog, ordered: true}
      - name: Bone
        features:
          - {name: weight, type: float}
`

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	m, err := ParseMetamodel([]byte(testMetamodel))
	require.NoError(t, err)
	r := NewRegistry()
	require.NoError(t, r.DeclareMetamodel(m))
	return r
}

func TestRegistry_Resolve(t *testing.T) {
	r := newTestRegistry(t)

	dog, err := r.Resolve(TypeURI(testNS, "Dog"))
	require.NoError(t, err)

	assert.Equal(t, "Dog", dog.Name)
	assert.Equal(t, testNS, dog.Namespace)
	require.NotNil(t, dog.Super)
	assert.Equal(t, "Named", dog.Super.Name)

	all := dog.AllFeatures()
	require.Len(t, all, 3)
	assert.Equal(t, "name", all[0].Name)
	assert.Equal(t, "owner", all[1].Name)
	assert.Equal(t, "friends", all[2].Name)
	for i, f := range all {
		assert.Equal(t, i, f.Index)
	}

	owner := all[1]
	assert.Equal(t, KindReference, owner.Kind)
	assert.Equal(t, TypeURI(testNS, "Person"), owner.Target)
	assert.Equal(t, 1, owner.UpperBound())
	assert.True(t, all[2].Unique, "references default to unique")
	assert.Equal(t, -1, all[2].UpperBound())

	require.NotNil(t, dog.Identifier())
	assert.Equal(t, "name", dog.Identifier().Name)
	assert.Same(t, dog.Super.Identifier(), dog.Identifier())
}

func TestRegistry_ResolveIsCached(t *testing.T) {
	r := newTestRegistry(t)
	uri := TypeURI(testNS, "Person")

	first, err := r.Resolve(uri)
	require.NoError(t, err)
	second, err := r.Resolve(uri)
	require.NoError(t, err)

	assert.Same(t, first, second)
	// Person and its super type Named
	assert.Equal(t, 2, r.Resolutions())
}

func TestRegistry_ConcurrentResolveBuildsOnce(t *testing.T) {
	r := newTestRegistry(t)
	uri := TypeURI(testNS, "Dog")

	var wg sync.WaitGroup
	results := make([]*EntityType, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.MustResolve(uri)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Same(t, results[0], got)
	}
	assert.Equal(t, 2, r.Resolutions())
}

func TestRegistry_UnknownType(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Resolve(TypeURI(testNS, "Cat"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestRegistry_DuplicateDeclaration(t *testing.T) {
	r := newTestRegistry(t)

	err := r.Declare(TypeDecl{Name: "Dog", URI: TypeURI(testNS, "Dog")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidType))
}

func TestRegistry_InvalidDeclarations(t *testing.T) {
	tests := []struct {
		name  string
		types []TypeDecl
	}{
		{
			name: "two identifiers",
			types: []TypeDecl{{Name: "A", Features: []FeatureDecl{
				{Name: "a", Type: "string", Identifier: true},
				{Name: "b", Type: "string", Identifier: true},
			}}},
		},
		{
			name: "identifier redeclared below an identified super type",
			types: []TypeDecl{
				{Name: "A", Features: []FeatureDecl{{Name: "a", Type: "string", Identifier: true}}},
				{Name: "B", Extends: "A", Features: []FeatureDecl{{Name: "b", Type: "int", Identifier: true}}},
			},
		},
		{
			name: "identifying reference",
			types: []TypeDecl{{Name: "A", Features: []FeatureDecl{
				{Name: "self", Kind: "reference", Target: "A", Identifier: true},
			}}},
		},
		{
			name: "undeclared reference target",
			types: []TypeDecl{{Name: "A", Features: []FeatureDecl{
				{Name: "other", Kind: "reference", Target: "Missing"},
			}}},
		},
		{
			name: "duplicate feature differing in case",
			types: []TypeDecl{{Name: "A", Features: []FeatureDecl{
				{Name: "name", Type: "string"},
				{Name: "Name", Type: "string"},
			}}},
		},
		{
			name: "unknown attribute type",
			types: []TypeDecl{{Name: "A", Features: []FeatureDecl{
				{Name: "when", Type: "timestamp"},
			}}},
		},
		{
			name: "inheritance cycle",
			types: []TypeDecl{
				{Name: "A", Extends: "B"},
				{Name: "B", Extends: "A"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.DeclarePackage(PackageDecl{Namespace: "urn:test", Types: tt.types}))

			_, err := r.ResolveAll()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidType), "got %v", err)
		})
	}
}

func TestEntityType_ResolveFeature(t *testing.T) {
	r := newTestRegistry(t)
	dog := r.MustResolve(TypeURI(testNS, "Dog"))

	t.Run("case insensitive", func(t *testing.T) {
		for _, name := range []string{"owner", "OWNER", "Owner"} {
			f, err := dog.ResolveFeature(name)
			require.NoError(t, err)
			assert.Equal(t, "owner", f.Name)
		}
	})

	t.Run("inherited", func(t *testing.T) {
		f, err := dog.ResolveFeature("NAME")
		require.NoError(t, err)
		assert.Equal(t, "Named", f.Owner.Name)
		assert.True(t, dog.Owns(f))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := dog.ResolveFeature("colour")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownFeature))

		var fe *FeatureError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "Dog", fe.Type)
		assert.Equal(t, "colour", fe.Feature)
		assert.Contains(t, err.Error(), "Dog.colour")
	})
}

func TestEntityType_Conformance(t *testing.T) {
	r := newTestRegistry(t)
	named := r.MustResolve(TypeURI(testNS, "Named"))
	dog := r.MustResolve(TypeURI(testNS, "Dog"))
	person := r.MustResolve(TypeURI(testNS, "Person"))

	assert.True(t, dog.Conforms(named))
	assert.True(t, person.Is(named.URI))
	assert.False(t, dog.Conforms(person))
	assert.False(t, named.Conforms(dog))

	owner, _ := dog.Lookup("owner")
	assert.True(t, owner.Accepts(person))
	assert.False(t, owner.Accepts(dog))
}
