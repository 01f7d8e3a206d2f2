package main

import (
	"github.com/randalmurphal/portgraph/pkg/portgraph"
	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/randalmurphal/portgraph/pkg/portgraph/nodes/standard"
	"github.com/randalmurphal/portgraph/pkg/portgraph/registry"
	"github.com/spf13/cobra"
)

type portView struct {
	Label   string `json:"label" yaml:"label"`
	Hint    string `json:"hint" yaml:"hint"`
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
}

type nodeTypeView struct {
	Name    string     `json:"name" yaml:"name"`
	Inputs  []portView `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs []portView `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

type domainView struct {
	Domain string         `json:"domain" yaml:"domain"`
	Nodes  []nodeTypeView `json:"nodes" yaml:"nodes"`
}

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "List the registered node libraries and their node types",
	RunE: func(cmd *cobra.Command, args []string) error {
		creator := newCreator()
		var out []domainView
		for _, domain := range creator.Domains() {
			pkg, _ := creator.Package(domain)
			view := domainView{Domain: domain}
			for _, name := range pkg.Names() {
				f, _ := pkg.Get(name)
				view.Nodes = append(view.Nodes, describe(f))
			}
			out = append(out, view)
		}
		return render(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
}

func newCreator() *registry.Creator {
	c := registry.NewCreator()
	// The standard package is built fresh here, so registration cannot conflict.
	_ = c.Register(standard.Domain, standard.Package())
	return c
}

// describe previews a factory's ports. Factories other than descriptors are
// instantiated once to read their IO.
func describe(f portgraph.Factory) nodeTypeView {
	view := nodeTypeView{Name: f.Name()}
	if d, ok := f.(*portgraph.Descriptor); ok {
		view.Inputs = portViews(d.PreviewInputs())
		view.Outputs = portViews(d.PreviewOutputs())
		return view
	}
	n, err := f.Instantiate()
	if err != nil {
		return view
	}
	for _, c := range n.Inputs().All() {
		view.Inputs = append(view.Inputs, portView{Label: c.Label(), Hint: hint.Name(c.Hint())})
	}
	for _, c := range n.Outputs().All() {
		view.Outputs = append(view.Outputs, portView{Label: c.Label(), Hint: hint.Name(c.Hint())})
	}
	return view
}

func portViews(ports []portgraph.Port) []portView {
	views := make([]portView, len(ports))
	for i, p := range ports {
		views[i] = portView{Label: p.Label, Hint: hint.Name(p.Hint)}
		if !p.Default.IsEmpty() {
			views[i].Default = p.Default.String()
		}
	}
	return views
}
