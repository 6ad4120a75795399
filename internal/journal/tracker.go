// Package journal records the changes made to the elements of a repository
// and forwards them to a sink.
package journal

import (
	"reflect"
	"sort"
	"sync"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/serialization"
)

// FeatureChange represents a change to a single feature
type FeatureChange struct {
	Feature  string
	OldValue any
	NewValue any
}

// Tracker tracks feature changes of one element against a baseline.
// Reference values are tracked in their persisted form, so a tracker never
// holds on to other elements.
type Tracker struct {
	mu       sync.RWMutex
	original map[string]any
	current  map[string]any
	changes  map[string]*FeatureChange
}

// NewTracker creates a tracker whose baseline is the current state of el
func NewTracker(el *model.Element) *Tracker {
	state := Snapshot(el)
	return &Tracker{
		original: state,
		current:  copyState(state),
		changes:  make(map[string]*FeatureChange),
	}
}

// Snapshot returns the persisted form of every feature value of el
func Snapshot(el *model.Element) map[string]any {
	state := make(map[string]any, len(el.Type().AllFeatures()))
	for _, f := range el.Type().AllFeatures() {
		state[f.Name] = persisted(el.Value(f))
	}
	return state
}

// persisted converts a feature value to the form journal records carry
func persisted(v any) any {
	switch x := v.(type) {
	case *model.Element:
		if x == nil {
			return nil
		}
		return serialization.RefOf(x)
	case []*model.Element:
		refs := make([]string, len(x))
		for i, el := range x {
			refs[i] = serialization.RefOf(el)
		}
		return refs
	default:
		return v
	}
}

func copyState(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func deepEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Changed returns true if the feature differs from the baseline
func (t *Tracker) Changed(feature string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.changes[feature]
	return ok
}

// ChangedFeatures returns the changed features in name order
func (t *Tracker) ChangedFeatures() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	features := make([]string, 0, len(t.changes))
	for f := range t.changes {
		features = append(features, f)
	}
	sort.Strings(features)
	return features
}

// PreviousValue returns the baseline value of a feature
func (t *Tracker) PreviousValue(feature string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.original[feature]
}

// CurrentValue returns the last recorded value of a feature
func (t *Tracker) CurrentValue(feature string) any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current[feature]
}

// Change returns the change of a feature, or nil if unchanged
func (t *Tracker) Change(feature string) *FeatureChange {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changes[feature]
}

// HasChanges returns true if any feature changed
func (t *Tracker) HasChanges() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.changes) > 0
}

// ChangedTo returns true if the feature changed to value
func (t *Tracker) ChangedTo(feature string, value any) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	change, ok := t.changes[feature]
	return ok && deepEqual(change.NewValue, value)
}

// ChangedFrom returns true if the feature changed from value
func (t *Tracker) ChangedFrom(feature string, value any) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	change, ok := t.changes[feature]
	return ok && deepEqual(change.OldValue, value)
}

// Reset makes the current state the new baseline
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.original = copyState(t.current)
	t.changes = make(map[string]*FeatureChange)
}

// Set records a new value for a feature. A value equal to the baseline
// clears the change.
func (t *Tracker) Set(feature string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.current[feature] = value
	old := t.original[feature]
	if deepEqual(old, value) {
		delete(t.changes, feature)
		return
	}
	t.changes[feature] = &FeatureChange{Feature: feature, OldValue: old, NewValue: value}
}

// ChangedData returns the new values of the changed features
func (t *Tracker) ChangedData() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]any, len(t.changes))
	for f, change := range t.changes {
		out[f] = change.NewValue
	}
	return out
}
