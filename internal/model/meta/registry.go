package meta

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Registry resolves type URIs to entity type descriptors. Declarations are
// registered up front; each descriptor is built on first resolution, cached
// for the lifetime of the registry and never rebuilt.
type Registry struct {
	mu          sync.RWMutex
	decls       map[string]TypeDecl
	resolved    map[string]*EntityType
	resolutions int
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		decls:    make(map[string]TypeDecl),
		resolved: make(map[string]*EntityType),
	}
}

// Declare registers a type declaration. decl.URI must be set.
func (r *Registry) Declare(decl TypeDecl) error {
	if decl.URI == "" {
		return &DeclError{Type: decl.Name, Message: "type declaration has no URI"}
	}
	namespace, _, ok := SplitTypeURI(decl.URI)
	if !ok {
		return &DeclError{Type: decl.Name, Message: "malformed type URI " + decl.URI,
			Hint: "type URIs look like http://namespace#//Name"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.decls[decl.URI]; exists {
		return errors.Wrapf(ErrInvalidType, "type %s is already declared", decl.URI)
	}
	r.decls[decl.URI] = decl.normalize(namespace)
	return nil
}

// DeclarePackage registers every type of a package
func (r *Registry) DeclarePackage(p PackageDecl) error {
	for _, t := range p.Types {
		t.URI = TypeURI(p.Namespace, t.Name)
		if err := r.Declare(t); err != nil {
			return err
		}
	}
	return nil
}

// DeclareMetamodel registers every package of a metamodel
func (r *Registry) DeclareMetamodel(m *Metamodel) error {
	for _, p := range m.Packages {
		if err := r.DeclarePackage(p); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the descriptor for uri, building it on first use
func (r *Registry) Resolve(uri string) (*EntityType, error) {
	r.mu.RLock()
	t, ok := r.resolved[uri]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(uri, nil)
}

// MustResolve is like Resolve but panics on failure. It is meant for
// generated code binding to a metamodel known to be valid.
func (r *Registry) MustResolve(uri string) *EntityType {
	t, err := r.Resolve(uri)
	if err != nil {
		panic(err)
	}
	return t
}

// ResolveAll resolves every declared type, which validates the whole metamodel
func (r *Registry) ResolveAll() ([]*EntityType, error) {
	uris := r.URIs()
	types := make([]*EntityType, 0, len(uris))
	for _, uri := range uris {
		t, err := r.Resolve(uri)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

// URIs returns the declared type URIs in sorted order
func (r *Registry) URIs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	uris := make([]string, 0, len(r.decls))
	for uri := range r.decls {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// Count returns the number of declared types
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.decls)
}

// Declared reports whether uri has been declared
func (r *Registry) Declared(uri string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decls[uri]
	return ok
}

// Resolutions returns how many descriptors have been built so far
func (r *Registry) Resolutions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolutions
}

// resolveLocked builds the descriptor for uri. visiting holds the chain of
// types currently being built to detect inheritance cycles.
func (r *Registry) resolveLocked(uri string, visiting []string) (*EntityType, error) {
	if t, ok := r.resolved[uri]; ok {
		return t, nil
	}
	for _, v := range visiting {
		if v == uri {
			return nil, &DeclError{Type: uri, Message: "inheritance cycle",
				Hint: "cycle: " + formatChain(append(visiting, uri))}
		}
	}

	decl, ok := r.decls[uri]
	if !ok {
		return nil, errors.WithHint(errors.Wrapf(ErrUnknownType, "type %s", uri),
			"declare the type in the metamodel before resolving it")
	}

	var super *EntityType
	if decl.Extends != "" {
		var err error
		super, err = r.resolveLocked(decl.Extends, append(visiting, uri))
		if err != nil {
			return nil, err
		}
	}

	t, err := r.build(decl, super)
	if err != nil {
		return nil, err
	}
	r.resolved[uri] = t
	r.resolutions++
	return t, nil
}

// build turns a validated declaration into a descriptor
func (r *Registry) build(decl TypeDecl, super *EntityType) (*EntityType, error) {
	namespace, name, _ := SplitTypeURI(decl.URI)
	t := &EntityType{
		URI:       decl.URI,
		Name:      name,
		Namespace: namespace,
		Abstract:  decl.Abstract,
		Super:     super,
		own:       make(map[string]*Feature, len(decl.Features)),
	}

	offset := 0
	if super != nil {
		offset = len(super.all)
		t.all = append(t.all, super.all...)
		t.identifier = super.identifier
	}

	v := &declValidator{registry: r, decl: decl, super: super}
	for i, fd := range decl.Features {
		f, err := v.feature(fd)
		if err != nil {
			return nil, err
		}
		f.Index = offset + i
		f.Owner = t
		if f.Identifier {
			t.identifier = f
		}
		t.Features = append(t.Features, f)
		t.all = append(t.all, f)
		t.own[f.Key()] = f
	}
	return t, nil
}

func formatChain(chain []string) string {
	s := ""
	for i, uri := range chain {
		if i > 0 {
			s += " -> "
		}
		s += uri
	}
	return s
}
