// Package serialization converts a repository to and from documents in which
// references are written as the identifier of their target.
package serialization

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
)

// structuralPrefix marks a reference to a target without identifier
const structuralPrefix = "#"

// Document is the persisted form of a repository
type Document struct {
	Elements []ElementDoc `yaml:"elements" json:"elements"`
}

// ElementDoc is the persisted form of one element
type ElementDoc struct {
	Type       string              `yaml:"type" json:"type"`
	ID         string              `yaml:"id" json:"id"`
	Root       bool                `yaml:"root,omitempty" json:"root,omitempty"`
	Attributes map[string]any      `yaml:"attributes,omitempty" json:"attributes,omitempty"`
	References map[string][]string `yaml:"references,omitempty" json:"references,omitempty"`
}

// Options control decoding
type Options struct {
	// AllowDangling leaves references that cannot be resolved empty instead
	// of failing with model.ErrDanglingResolution
	AllowDangling bool

	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Encode builds the document of repo. Elements keep their repository order.
func Encode(repo *model.Repository) *Document {
	doc := &Document{Elements: make([]ElementDoc, 0, repo.Len())}
	for _, el := range repo.Elements() {
		doc.Elements = append(doc.Elements, encodeElement(repo, el))
	}
	return doc
}

func encodeElement(repo *model.Repository, el *model.Element) ElementDoc {
	ed := ElementDoc{
		Type: el.Type().URI,
		ID:   el.ID().String(),
		Root: repo.IsRoot(el),
	}
	for _, f := range el.Type().AllFeatures() {
		if !f.IsReference() {
			if v := el.Value(f); v != nil {
				if ed.Attributes == nil {
					ed.Attributes = make(map[string]any)
				}
				ed.Attributes[f.Name] = v
			}
			continue
		}

		var refs []string
		if f.IsMany() {
			for _, target := range el.Value(f).([]*model.Element) {
				refs = append(refs, RefOf(target))
			}
		} else if target, ok := el.Value(f).(*model.Element); ok {
			refs = append(refs, RefOf(target))
		}
		if len(refs) > 0 {
			if ed.References == nil {
				ed.References = make(map[string][]string)
			}
			ed.References[f.Name] = refs
		}
	}
	return ed
}

// RefOf returns the persisted reference to target: its identifier, or its
// structural id prefixed with '#' when it has none
func RefOf(target *model.Element) string {
	if id, ok := target.IdentifierString(); ok && !strings.HasPrefix(id, structuralPrefix) {
		return id
	}
	return structuralPrefix + target.ID().String()
}

// Decode adds the elements of doc to repo. Elements are created and their
// attributes set first; references are resolved in a second pass so they
// may point forward. On error every element created so far is deleted again,
// leaving repo as it was.
func Decode(repo *model.Repository, doc *Document, opts Options) (err error) {
	log := opts.logger()
	created := make([]*model.Element, 0, len(doc.Elements))
	defer func() {
		if err == nil {
			return
		}
		for _, el := range slices.Backward(created) {
			el.Delete()
		}
		log.Debug("document rolled back", zap.Int("elements", len(created)), zap.Error(err))
	}()

	for i, ed := range doc.Elements {
		el, err := decodeElement(repo, ed)
		if err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
		if err := repo.Add(el, ed.Root); err != nil {
			return errors.Wrapf(err, "element %d", i)
		}
		created = append(created, el)
	}

	for i, ed := range doc.Elements {
		el := created[i]
		for name, refs := range ed.References {
			f, err := el.Feature(name)
			if err != nil {
				return err
			}
			if !f.IsReference() {
				return errors.Wrapf(meta.ErrTypeMismatch, "%s: %s is an attribute", el, f.Name)
			}

			targets := make([]*model.Element, 0, len(refs))
			for _, ref := range refs {
				target, err := Resolve(repo, f, ref)
				if err != nil {
					if opts.AllowDangling && errors.Is(err, model.ErrDanglingResolution) {
						log.Warn("dangling reference left empty",
							zap.Stringer("element", el),
							zap.String("feature", f.Name),
							zap.String("ref", ref))
						continue
					}
					return errors.Wrapf(err, "%s.%s", el, f.Name)
				}
				targets = append(targets, target)
			}

			if f.IsMany() {
				err = el.Assign(f, targets)
			} else if len(targets) > 0 {
				err = el.Assign(f, targets[0])
			}
			if err != nil {
				return err
			}
		}
	}

	log.Debug("document decoded", zap.Int("elements", len(created)))
	return nil
}

func decodeElement(repo *model.Repository, ed ElementDoc) (*model.Element, error) {
	t, err := repo.Resolve(ed.Type)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if ed.ID != "" {
		if id, err = uuid.Parse(ed.ID); err != nil {
			return nil, errors.Wrapf(err, "invalid element id %q", ed.ID)
		}
	}
	el, err := model.NewFactory(t).NewWithID(id)
	if err != nil {
		return nil, err
	}
	for name, raw := range ed.Attributes {
		f, err := el.Feature(name)
		if err != nil {
			return nil, err
		}
		if f.IsReference() {
			return nil, errors.Wrapf(meta.ErrTypeMismatch, "%s: %s is a reference", t.Name, f.Name)
		}
		v, err := attributeValue(f, raw)
		if err != nil {
			return nil, meta.Mismatch(t, f, raw)
		}
		if err := el.Assign(f, v); err != nil {
			return nil, err
		}
	}
	return el, nil
}

// Resolve finds the target of a persisted reference held by feature f
func Resolve(repo *model.Repository, f *meta.Feature, ref string) (*model.Element, error) {
	if strings.HasPrefix(ref, structuralPrefix) {
		id, err := uuid.Parse(ref[len(structuralPrefix):])
		if err != nil {
			return nil, errors.Wrapf(model.ErrDanglingResolution, "malformed reference %q", ref)
		}
		if target, ok := repo.ByID(id); ok {
			return target, nil
		}
		return nil, errors.Wrapf(model.ErrDanglingResolution, "no element %s", id)
	}
	return repo.Lookup(f.Target, ref)
}

// attributeValue converts a decoded YAML or JSON scalar to the attribute type
func attributeValue(f *meta.Feature, raw any) (any, error) {
	switch v := raw.(type) {
	case json.Number:
		if f.Type == meta.TypeInt {
			return v.Int64()
		}
		return v.Float64()
	case float64:
		if f.Type == meta.TypeInt {
			if v != math.Trunc(v) {
				return nil, errors.Newf("%v is not an integer", v)
			}
			return int64(v), nil
		}
	case int:
		if f.Type == meta.TypeFloat {
			return float64(v), nil
		}
	case int64:
		if f.Type == meta.TypeFloat {
			return float64(v), nil
		}
	}
	return raw, nil
}
