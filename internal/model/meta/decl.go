package meta

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// FeatureDecl is the declaration of a feature as read from a metamodel file
type FeatureDecl struct {
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind,omitempty"`
	Type       string `yaml:"type,omitempty"`
	Target     string `yaml:"target,omitempty"`
	Identifier bool   `yaml:"id,omitempty"`
	Ordered    bool   `yaml:"ordered,omitempty"`
	Unique     *bool  `yaml:"unique,omitempty"`
}

// TypeDecl is the declaration of an entity type
type TypeDecl struct {
	Name     string        `yaml:"name"`
	Extends  string        `yaml:"extends,omitempty"`
	Abstract bool          `yaml:"abstract,omitempty"`
	Features []FeatureDecl `yaml:"features,omitempty"`

	// URI is filled in from the enclosing package when declared through one
	URI string `yaml:"-"`
}

// PackageDecl groups type declarations sharing a namespace URI
type PackageDecl struct {
	Namespace string     `yaml:"namespace"`
	Types     []TypeDecl `yaml:"types"`
}

// Metamodel is the root of a metamodel file
type Metamodel struct {
	Packages []PackageDecl `yaml:"packages"`
}

// ParseMetamodel parses a YAML metamodel document
func ParseMetamodel(data []byte) (*Metamodel, error) {
	var m Metamodel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to parse metamodel")
	}
	for i, p := range m.Packages {
		if p.Namespace == "" {
			return nil, errors.Wrapf(ErrInvalidType, "package %d has no namespace", i)
		}
	}
	return &m, nil
}

// LoadMetamodel reads and parses a YAML metamodel file
func LoadMetamodel(path string) (*Metamodel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read metamodel %s", path)
	}
	return ParseMetamodel(data)
}

// qualify turns a type reference relative to namespace into a full type URI.
// "Person", "#//Person" and "http://ns#//Person" are all accepted.
func qualify(namespace, ref string) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "#//"):
		return namespace + ref
	case strings.Contains(ref, "#//"):
		return ref
	default:
		return TypeURI(namespace, ref)
	}
}

// normalize fills in the URI of the declaration and qualifies type references
func (d TypeDecl) normalize(namespace string) TypeDecl {
	d.URI = TypeURI(namespace, d.Name)
	d.Extends = qualify(namespace, d.Extends)
	features := make([]FeatureDecl, len(d.Features))
	for i, f := range d.Features {
		f.Target = qualify(namespace, f.Target)
		features[i] = f
	}
	d.Features = features
	return d
}
