package meta

// declValidator checks feature declarations of one type while it is built.
// It runs with the registry lock held.
type declValidator struct {
	registry *Registry
	decl     TypeDecl
	super    *EntityType
	seen     map[string]bool
	hasID    bool
}

func (v *declValidator) fail(feature, msg, hint string) error {
	return &DeclError{Type: v.decl.URI, Feature: feature, Message: msg, Hint: hint}
}

// feature validates a single feature declaration and converts it
func (v *declValidator) feature(fd FeatureDecl) (*Feature, error) {
	if v.seen == nil {
		v.seen = make(map[string]bool)
		v.hasID = v.super != nil && v.super.identifier != nil
	}

	if fd.Name == "" {
		return nil, v.fail("", "feature without a name", "")
	}
	key := NormalizeName(fd.Name)
	if v.seen[key] {
		return nil, v.fail(fd.Name, "duplicate feature",
			"feature names are compared case-insensitively")
	}
	if v.super != nil {
		if _, ok := v.super.Lookup(fd.Name); ok {
			return nil, v.fail(fd.Name, "feature hides an inherited feature", "")
		}
	}
	v.seen[key] = true

	kind, err := ParseFeatureKind(fd.Kind)
	if err != nil {
		return nil, v.fail(fd.Name, "unknown feature kind "+fd.Kind, "use attribute, reference or references")
	}

	f := &Feature{
		Name:       fd.Name,
		Kind:       kind,
		Identifier: fd.Identifier,
		Ordered:    fd.Ordered,
	}

	if kind == KindAttribute {
		if fd.Target != "" {
			return nil, v.fail(fd.Name, "attribute declares a reference target", "")
		}
		f.Type, err = ParseValueType(fd.Type)
		if err != nil || f.Type == TypeElement {
			return nil, v.fail(fd.Name, "invalid attribute type "+fd.Type,
				"use string, int, float or bool")
		}
	} else {
		if fd.Identifier {
			return nil, v.fail(fd.Name, "only attributes can identify an element", "")
		}
		if fd.Target == "" {
			return nil, v.fail(fd.Name, "reference without a target type", "")
		}
		if _, ok := v.registry.decls[fd.Target]; !ok {
			return nil, v.fail(fd.Name, "reference target "+fd.Target+" is not declared", "")
		}
		f.Type = TypeElement
		f.Target = fd.Target
		f.Unique = kind == KindReference || fd.Unique == nil || *fd.Unique
	}

	if f.Identifier {
		if v.hasID {
			return nil, v.fail(fd.Name, "type declares more than one identifying attribute",
				"at most one attribute per type hierarchy may be marked id")
		}
		v.hasID = true
	}
	return f, nil
}
