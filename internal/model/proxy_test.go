package model

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgraph/modelgraph/internal/model/meta"
)

func TestProxy_ReadsAndWritesThrough(t *testing.T) {
	fx := newFixture(t)
	dog := fx.newElement(t, fx.dog, "fido")

	p, err := dog.Expression("name")
	require.NoError(t, err)
	assert.Equal(t, "fido", p.Value())

	require.NoError(t, dog.SetFeature("name", "rex"))
	assert.Equal(t, "rex", p.Value(), "proxy is never stale")

	var rec recorder
	name, _ := dog.Feature("name")
	dog.Changing(name).Subscribe(rec.record("changing"))
	dog.Changed(name).Subscribe(rec.record("changed"))

	require.NoError(t, p.SetValue("max"))
	assert.Equal(t, []string{"changing:name", "changed:name"}, rec.log)
	got, _ := dog.GetAttribute("name")
	assert.Equal(t, "max", got)

	err = p.SetValue(3)
	assert.True(t, errors.Is(err, meta.ErrTypeMismatch))
}

func TestProxy_NotifiesSubscribers(t *testing.T) {
	fx := newFixture(t)
	dog := fx.newElement(t, fx.dog, "fido")
	alice := fx.newElement(t, fx.person, "alice")

	p, err := dog.Expression("owner")
	require.NoError(t, err)
	assert.Nil(t, p.Value())
	assert.False(t, p.IsAttached())

	var values []any
	sub := p.Subscribe(func(_ *Element, ev ChangeEvent) { values = append(values, ev.New) })
	assert.True(t, p.IsAttached())

	require.NoError(t, dog.SetFeature("owner", alice))
	assert.Same(t, alice, p.Value())
	alice.Delete()
	assert.Equal(t, []any{alice, nil}, values)

	sub.Unsubscribe()
	assert.False(t, p.IsAttached())
}

func TestProxy_IsNotShared(t *testing.T) {
	fx := newFixture(t)
	dog := fx.newElement(t, fx.dog, "fido")

	a, err := dog.Expression("name")
	require.NoError(t, err)
	b, err := dog.Expression("NAME")
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Same(t, a.Feature(), b.Feature())

	a.Subscribe(func(*Element, ChangeEvent) {})
	b.Release()
	assert.True(t, a.IsAttached())
	a.Release()
	assert.False(t, a.IsAttached())

	_, err = dog.Expression("colour")
	assert.True(t, errors.Is(err, meta.ErrUnknownFeature))
}
