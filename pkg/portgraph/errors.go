package portgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for node definition.
var (
	// ErrReservedLabel indicates an input label collides with a construction keyword.
	ErrReservedLabel = errors.New("label is reserved")

	// ErrDuplicateLabel indicates two channels or children share a label.
	ErrDuplicateLabel = errors.New("duplicate label")

	// ErrInvalidLabel indicates an empty label or one containing the path delimiter.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrMultipleReturns indicates output labels cannot be scraped because the
	// function has more than one return statement.
	ErrMultipleReturns = errors.New("more than one return statement; supply output labels")

	// ErrLabelHintMismatch indicates the output label count disagrees with the
	// function's result count.
	ErrLabelHintMismatch = errors.New("output labels do not match return values")

	// ErrNotCallable indicates the wrapped value is not a function.
	ErrNotCallable = errors.New("not a callable")

	// ErrInvalidSignature indicates a function shape the factory cannot wrap.
	ErrInvalidSignature = errors.New("unsupported function signature")

	// ErrInvalidDefault indicates a default value that cannot satisfy its port.
	ErrInvalidDefault = errors.New("invalid default value")
)

// Sentinel errors for wiring and assignment.
var (
	// ErrNotOutputChannel indicates an input was connected to something other
	// than an output data channel.
	ErrNotOutputChannel = errors.New("source is not an output channel")

	// ErrUnknownChannel indicates no channel exists under the label.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrLabelMismatch indicates a channel was inserted under a label other than its own.
	ErrLabelMismatch = errors.New("channel label does not match key")

	// ErrNodeRunning indicates a connection change was attempted while the
	// owning node was running.
	ErrNodeRunning = errors.New("node is running")

	// ErrAlreadyParented indicates a node was added to a second composite.
	ErrAlreadyParented = errors.New("node already has a parent")

	// ErrNotChild indicates a node was named as part of a composite it does
	// not belong to.
	ErrNotChild = errors.New("node is not a child of the composite")

	// ErrSealed indicates a composite was modified after construction finished.
	ErrSealed = errors.New("composite is sealed")

	// ErrCycle indicates the data dependencies among children form a cycle and
	// no explicit execution order was given.
	ErrCycle = errors.New("data dependency cycle")

	// ErrPartialExecution indicates only one of starting nodes and run-signal
	// wiring was configured for a composite.
	ErrPartialExecution = errors.New("starting nodes and run signals must be configured together")

	// ErrIncompatibleReplacement indicates a replacement child lacks a channel
	// the replaced child had connected, or its hint cannot carry the link.
	ErrIncompatibleReplacement = errors.New("replacement cannot take over connections")
)

// Sentinel errors for execution.
var (
	// ErrNotReady indicates a run was attempted on a node that is not ready.
	ErrNotReady = errors.New("node not ready")

	// ErrSelfWithExecutor indicates a node bound to its own identity was asked
	// to run on an executor.
	ErrSelfWithExecutor = errors.New("self-binding node cannot run on an executor")

	// ErrNoExecutor indicates RunAsync was called on a node without an executor.
	ErrNoExecutor = errors.New("no executor configured")

	// ErrDuplicateArgument indicates a value was given both positionally and by label.
	ErrDuplicateArgument = errors.New("argument given positionally and by label")

	// ErrNilContext indicates a nil context was passed to a run.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMaxSignalDepth indicates a signal chain exceeded its depth limit.
	ErrMaxSignalDepth = errors.New("exceeded maximum signal depth")
)

// DefinitionError reports a malformed node type or composite.
type DefinitionError struct {
	// Name is the node type or composite being defined.
	Name string
	// Err is the underlying cause, possibly joined.
	Err error
}

// Error implements the error interface.
func (e *DefinitionError) Error() string {
	return fmt.Sprintf("define %s: %v", e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// ConnectionError reports a structurally invalid connection.
type ConnectionError struct {
	// Channel is the "owner.label" of the channel being connected.
	Channel string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Channel, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ConnectionTypeError reports a value or connection that violates a type hint.
// The target channel is left unchanged.
type ConnectionTypeError struct {
	// Channel is the "owner.label" of the target channel.
	Channel string
	// Op is "assign" for literal values and "connect" for connections.
	Op string
	// Hint is the target's hint.
	Hint string
	// Got describes the rejected value or source hint.
	Got string
}

// Error implements the error interface.
func (e *ConnectionTypeError) Error() string {
	return fmt.Sprintf("%s %s: %s is incompatible with hint %s", e.Op, e.Channel, e.Got, e.Hint)
}

// NotReadyError is returned when a node is asked to run but is not ready.
type NotReadyError struct {
	// Node is the semantic path of the node.
	Node string
	// Report is the readiness diagnostic at the time of the attempt.
	Report ReadinessReport
}

// Error implements the error interface.
func (e *NotReadyError) Error() string {
	return fmt.Sprintf("node %s not ready:\n%s", e.Node, e.Report)
}

// Is matches ErrNotReady.
func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// ExecutionError wraps an error returned by a node computation.
type ExecutionError struct {
	// Node is the semantic path of the failing node.
	Node string
	// Op is the operation that failed ("run", "after run").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised inside a node computation.
type PanicError struct {
	// Node is the semantic path of the node that panicked, empty for bare tasks.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("task panicked: %v", e.Value)
	}
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// ArityError reports a count mismatch between values and channels.
type ArityError struct {
	// Node is the semantic path of the node.
	Node string
	// Op is "arguments" for positional inputs or "outputs" for run results.
	Op string
	// Want is the number of channels available.
	Want int
	// Got is the number of values supplied.
	Got int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	return fmt.Sprintf("node %s: %s: expected %d values, got %d", e.Node, e.Op, e.Want, e.Got)
}

// MaxSignalDepthError is returned when a push chain nests deeper than allowed.
type MaxSignalDepthError struct {
	// Max is the configured depth limit.
	Max int
	// Node is the node whose run signal would have exceeded the limit.
	Node string
}

// Error implements the error interface.
func (e *MaxSignalDepthError) Error() string {
	return fmt.Sprintf("exceeded maximum signal depth (%d) at node %s", e.Max, e.Node)
}

// Unwrap returns ErrMaxSignalDepth for errors.Is support.
func (e *MaxSignalDepthError) Unwrap() error {
	return ErrMaxSignalDepth
}
