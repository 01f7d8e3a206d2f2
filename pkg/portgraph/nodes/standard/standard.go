// Package standard is the node library shipped with portgraph. Every type is
// built with the portgraph factories, so the package doubles as a reference
// for authoring node libraries.
package standard

import (
	"context"
	"fmt"

	"github.com/randalmurphal/portgraph/pkg/portgraph"
	"github.com/randalmurphal/portgraph/pkg/portgraph/hint"
	"github.com/randalmurphal/portgraph/pkg/portgraph/registry"
)

// Domain is the registry domain of this library.
const Domain = "standard"

// Labels of the If node's branch signals.
const (
	TrueSignal  = "true"
	FalseSignal = "false"
)

// UserInput passes its single input through unchanged. It is the usual
// entry point for values supplied from outside a graph.
var UserInput = portgraph.MustFromFunc(func(userInput any) any {
	return userInput
}, portgraph.WithName("user_input"), portgraph.WithInputLabels("user_input"), portgraph.WithOutputLabels("user_input"))

var ifDescriptor = portgraph.MustDefine("if",
	[]portgraph.Port{{Label: "condition", Hint: hint.Of[bool]()}},
	[]portgraph.Port{{Label: "truth", Hint: hint.Of[bool]()}},
	func(_ context.Context, kw portgraph.Kwargs) (any, error) {
		return kw["condition"].(bool), nil
	})

// ifFactory builds If nodes: the descriptor plus one output signal per
// branch, fired after each run.
type ifFactory struct{}

// If evaluates a boolean condition and, after a Run, fires its "true" or
// "false" output signal. Connecting a branch back to an upstream node's run
// signal makes a loop:
//
//	check, _ := standard.If.Instantiate()
//	check.Signals().Output.MustGet(standard.FalseSignal).Connect(step.Signals().Input.Run())
var If portgraph.Factory = ifFactory{}

func (ifFactory) Name() string { return ifDescriptor.Name() }

func (ifFactory) Instantiate(opts ...portgraph.Option) (*portgraph.Node, error) {
	all := append([]portgraph.Option{portgraph.WithAfterRun(fireBranch)}, opts...)
	n, err := ifDescriptor.New(all...)
	if err != nil {
		return nil, err
	}
	for _, label := range []string{TrueSignal, FalseSignal} {
		if err := n.Signals().Output.Add(portgraph.NewOutputSignal(label)); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func fireBranch(ctx context.Context, n *portgraph.Node) error {
	truth, ok := n.Outputs().Value("truth").Get()
	if !ok {
		return fmt.Errorf("%s: no truth value", n.Label())
	}
	label := FalseSignal
	if truth.(bool) {
		label = TrueSignal
	}
	sig, ok := n.Signals().Output.Get(label)
	if !ok {
		return nil
	}
	return sig.Fire(ctx)
}

// Package returns the library's registry package.
func Package() *registry.Package {
	p, err := registry.NewPackage(Domain, UserInput, If)
	if err != nil {
		panic(err)
	}
	return p
}
