package model

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrDanglingResolution is returned when an identifier does not resolve to
	// an element of the repository
	ErrDanglingResolution = errors.New("dangling resolution")

	// ErrDuplicateIdentifier is returned when two elements of one type hierarchy
	// would share an identifier
	ErrDuplicateIdentifier = errors.New("duplicate identifier")

	// ErrNotCollection is returned when a collection view is requested for an
	// attribute
	ErrNotCollection = errors.New("feature is not a reference")

	// ErrDeleted is returned when a deleted element is mutated or assigned
	ErrDeleted = errors.New("element is deleted")

	// ErrAbstractType is returned when instantiating an abstract entity type
	ErrAbstractType = errors.New("abstract type")
)
