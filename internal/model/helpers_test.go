package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

const testNS = "urn:modelgraph:test"

const testMetamodel = `
packages:
  - namespace: urn:modelgraph:test
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
          - {name: weight, type: float}
      - name: Tag
        features:
          - {name: label, type: string}
`

type fixture struct {
	registry *meta.Registry
	person   *meta.EntityType
	dog      *meta.EntityType
	tag      *meta.EntityType
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m, err := meta.ParseMetamodel([]byte(testMetamodel))
	require.NoError(t, err)
	reg := meta.NewRegistry()
	require.NoError(t, reg.DeclareMetamodel(m))
	return &fixture{
		registry: reg,
		person:   reg.MustResolve(meta.TypeURI(testNS, "Person")),
		dog:      reg.MustResolve(meta.TypeURI(testNS, "Dog")),
		tag:      reg.MustResolve(meta.TypeURI(testNS, "Tag")),
	}
}

func (fx *fixture) newElement(t *testing.T, typ *meta.EntityType, name string) *Element {
	t.Helper()
	el, err := NewFactory(typ).New()
	require.NoError(t, err)
	if name != "" {
		require.NoError(t, el.SetFeature("name", name))
	}
	return el
}

// recorder collects event notifications as strings in dispatch order
type recorder struct {
	log []string
}

func (r *recorder) record(label string) Handler[ChangeEvent] {
	return func(_ *Element, ev ChangeEvent) {
		r.log = append(r.log, label+":"+ev.Feature.Name)
	}
}

func collect(seq func(func(*Element) bool)) []*Element {
	var out []*Element
	for el := range seq {
		out = append(out, el)
	}
	return out
}
