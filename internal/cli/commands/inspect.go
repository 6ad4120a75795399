package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelgraph/modelgraph/internal/cli/ui"
	"github.com/modelgraph/modelgraph/internal/logger"
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
	"github.com/modelgraph/modelgraph/internal/serialization"
)

func newInspectCommand(g *globalOptions) *cobra.Command {
	var (
		typeName      string
		allowDangling bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <input>",
		Short: "Print the elements of a model",
		Long: `Load a model and print a table of its elements with their identifier,
attributes and referenced elements.

Examples:
  modelgraph inspect model.yaml
  modelgraph inspect model.yaml --type Dog`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := newRegistry(g.cfg)
			if err != nil {
				return err
			}
			repo := newRepository(reg)
			err = serialization.Load(repo, args[0], serialization.Options{
				AllowDangling: allowDangling,
				Logger:        logger.Named("serialization"),
			})
			if err != nil {
				return err
			}

			var filter *meta.EntityType
			if typeName != "" {
				if filter, err = findType(reg, typeName); err != nil {
					return err
				}
			}
			printModel(cmd, args[0], repo, filter)
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "only list elements of this type (name or URI)")
	cmd.Flags().BoolVar(&allowDangling, "allow-dangling", false, "leave unresolvable references empty")

	return cmd
}

// findType resolves a type by URI or by its short name
func findType(reg *meta.Registry, name string) (*meta.EntityType, error) {
	if reg.Declared(name) {
		return reg.Resolve(name)
	}

	var names []string
	var matches []string
	for _, uri := range reg.URIs() {
		_, short, ok := meta.SplitTypeURI(uri)
		if !ok {
			continue
		}
		names = append(names, short)
		if short == name {
			matches = append(matches, uri)
		}
	}

	slices.Sort(names)
	names = slices.Compact(names)

	switch len(matches) {
	case 1:
		return reg.Resolve(matches[0])
	case 0:
		return nil, withSuggestions(errors.Wrapf(meta.ErrUnknownType, "no type named %q", name), name, names)
	default:
		return nil, errors.WithHint(
			errors.Newf("type name %q is ambiguous", name),
			"use one of "+strings.Join(matches, ", "))
	}
}

func printModel(cmd *cobra.Command, path string, repo *model.Repository, filter *meta.EntityType) {
	out := cmd.OutOrStdout()
	noColor := color.NoColor

	types := make(map[*meta.EntityType]bool)
	for _, el := range repo.Elements() {
		types[el.Type()] = true
	}

	ui.Header(out, "Model "+path, noColor)
	kv := ui.NewKeyValueTable(out, noColor)
	kv.AddRow("Elements", strconv.Itoa(repo.Len()))
	kv.AddRow("Roots", strconv.Itoa(len(repo.Roots())))
	kv.AddRow("Types", strconv.Itoa(len(types)))
	kv.Render()
	fmt.Fprintln(out)

	table := ui.NewTable(out, []string{"Type", "Identifier", "Root", "Attributes", "References"},
		&ui.TableOptions{NoColor: noColor})
	for _, el := range repo.Elements() {
		if filter != nil && !el.Type().Conforms(filter) {
			continue
		}
		id, ok := el.IdentifierString()
		if !ok {
			id = "#" + el.ID().String()
		}
		root := ""
		if repo.IsRoot(el) {
			root = "yes"
		}
		table.AddRow(el.Type().Name, id, root, describeAttributes(el), describeReferences(el))
	}
	table.Render()
}

func describeAttributes(el *model.Element) string {
	var parts []string
	for _, f := range el.Type().AllFeatures() {
		if f.IsReference() {
			continue
		}
		v, err := el.GetAttribute(f.Name)
		if err != nil || v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", f.Name, v))
	}
	return strings.Join(parts, ", ")
}

func describeReferences(el *model.Element) string {
	var parts []string
	for _, f := range el.Type().References() {
		view, err := el.View(f.Name)
		if err != nil || view.Len() == 0 {
			continue
		}
		var refs []string
		for target := range view.All() {
			refs = append(refs, serialization.RefOf(target))
		}
		if f.IsMany() {
			parts = append(parts, fmt.Sprintf("%s=[%s]", f.Name, strings.Join(refs, " ")))
		} else {
			parts = append(parts, f.Name+"="+refs[0])
		}
	}
	return strings.Join(parts, ", ")
}
