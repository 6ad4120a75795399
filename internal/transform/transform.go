// Package transform defines the boundary to synchronizing transformations
// and the runner that drives them.
package transform

import (
	"context"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/modelgraph/modelgraph/internal/model"
)

// Direction tells a transformation which side is authoritative
type Direction int

const (
	// LeftToRight makes the right model follow the left one
	LeftToRight Direction = iota
	// RightToLeft makes the left model follow the right one
	RightToLeft
)

func (d Direction) String() string {
	if d == RightToLeft {
		return "right-to-left"
	}
	return "left-to-right"
}

// Transformation keeps two models in agreement. Implementations only use
// the reflective element surface, so they work for any metamodel.
type Transformation interface {
	Name() string
	// Initialize prepares the transformation and drops any trace of
	// previous runs
	Initialize() error
	// Synchronize propagates the authoritative side of dir onto the other
	Synchronize(ctx context.Context, left, right *model.Repository, dir Direction) error
}

var builtins = map[string]func() Transformation{
	"identity": func() Transformation { return Identity{} },
	"copy":     func() Transformation { return NewCopy() },
	"pets":     func() Transformation { return NewPets() },
}

// Names returns the names of the built-in transformations
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns a fresh instance of the named built-in transformation
func Lookup(name string) (Transformation, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, errors.WithHint(
			errors.Newf("unknown transformation %q", name),
			"available transformations: "+strings.Join(Names(), ", "))
	}
	return build(), nil
}

// Identity leaves both models untouched
type Identity struct{}

// Name implements Transformation
func (Identity) Name() string { return "identity" }

// Initialize implements Transformation
func (Identity) Initialize() error { return nil }

// Synchronize implements Transformation
func (Identity) Synchronize(ctx context.Context, _, _ *model.Repository, _ Direction) error {
	return ctx.Err()
}
