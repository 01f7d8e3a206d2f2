package portgraph

import "fmt"

// Arg is an input value for Run, Pull, Execute and WithInputs. Build one
// with Pos or Kw.
type Arg struct {
	label      string
	value      any
	positional bool
}

// Pos is a positional argument, matched to inputs in declared order.
func Pos(v any) Arg {
	return Arg{value: v, positional: true}
}

// Kw is an argument for the input labelled label. The value may be a literal
// or an *OutputData to connect to.
func Kw(label string, v any) Arg {
	return Arg{label: label, value: v}
}

// SetInputValues applies args to the inputs. More positional values than
// inputs fails with *ArityError; a label given both positionally and by Kw
// fails with ErrDuplicateArgument; in both cases nothing is assigned.
func (n *Node) SetInputValues(args ...Arg) error {
	if len(args) == 0 {
		return nil
	}
	labels := n.Inputs().Labels()

	var ordered []Arg
	positional := make(map[string]bool)
	for _, a := range args {
		if !a.positional {
			continue
		}
		i := len(positional)
		if i >= len(labels) {
			return &ArityError{Node: n.SemanticPath(), Op: "arguments", Want: len(labels), Got: countPositional(args)}
		}
		positional[labels[i]] = true
		ordered = append(ordered, Kw(labels[i], a.value))
	}
	for _, a := range args {
		if a.positional {
			continue
		}
		if positional[a.label] {
			return fmt.Errorf("node %s: %w: %s", n.SemanticPath(), ErrDuplicateArgument, a.label)
		}
		ordered = append(ordered, a)
	}

	for _, a := range ordered {
		if err := n.Inputs().Set(a.label, a.value); err != nil {
			return err
		}
	}
	return nil
}

func countPositional(args []Arg) int {
	count := 0
	for _, a := range args {
		if a.positional {
			count++
		}
	}
	return count
}
