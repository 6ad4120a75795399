package model

import (
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// Proxy is a live handle on one feature of one element. Value reads through
// to the element and SetValue writes through the regular mutation routine.
// Subscribers of the proxy are notified whenever the feature's Changed event
// fires, without depending on the element's concrete type.
type Proxy struct {
	element *Element
	feature *meta.Feature
	changed relay[ChangeEvent]
}

// Expression creates a proxy for the named feature. Each call returns a new
// proxy; callers that want to share one must keep it.
func (e *Element) Expression(name string) (*Proxy, error) {
	f, err := e.Feature(name)
	if err != nil {
		return nil, err
	}
	return NewProxy(e, f), nil
}

// NewProxy creates a proxy for feature f of e
func NewProxy(e *Element, f *meta.Feature) *Proxy {
	e.mustOwn(f)
	p := &Proxy{element: e, feature: f}
	p.changed.source = func(fn Handler[ChangeEvent]) *Subscription {
		return e.Changed(f).Subscribe(fn)
	}
	return p
}

// Element returns the element the proxy is bound to
func (p *Proxy) Element() *Element {
	return p.element
}

// Feature returns the feature the proxy is bound to
func (p *Proxy) Feature() *meta.Feature {
	return p.feature
}

// Value returns the current feature value
func (p *Proxy) Value() any {
	if p.feature.Kind == meta.KindReference {
		if target, ok := p.element.values[p.feature.Index].(*Element); ok {
			return target
		}
		return nil
	}
	return p.element.Value(p.feature)
}

// SetValue assigns the feature
func (p *Proxy) SetValue(v any) error {
	return p.element.Assign(p.feature, v)
}

// Subscribe registers fn for value changes
func (p *Proxy) Subscribe(fn Handler[ChangeEvent]) *Subscription {
	return p.changed.subscribe(fn)
}

// IsAttached reports whether the proxy currently observes the element
func (p *Proxy) IsAttached() bool {
	return p.changed.attached()
}

// Release drops all subscribers and detaches from the element
func (p *Proxy) Release() {
	p.changed.release()
}
