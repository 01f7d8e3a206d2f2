package main

import (
	"context"

	"github.com/randalmurphal/portgraph/pkg/portgraph"
	"github.com/randalmurphal/portgraph/pkg/portgraph/executor"
	"github.com/randalmurphal/portgraph/pkg/portgraph/nodes/standard"
	"github.com/randalmurphal/portgraph/pkg/portgraph/observability"
	"github.com/randalmurphal/portgraph/pkg/portgraph/storage"
	"github.com/spf13/cobra"
)

var (
	demoX       float64
	demoFactor  float64
	demoOffset  float64
	demoMetrics bool
)

var (
	scaleType = portgraph.MustFromFunc(func(x, factor float64) float64 {
		return x * factor
	}, portgraph.WithName("scale"),
		portgraph.WithInputLabels("x", "factor"),
		portgraph.WithOutputLabels("scaled"),
		portgraph.WithDefaults(map[string]any{"factor": 2}))

	shiftType = portgraph.MustFromFunc(func(x, offset float64) float64 {
		return x + offset
	}, portgraph.WithName("shift"),
		portgraph.WithInputLabels("x", "offset"),
		portgraph.WithOutputLabels("y"),
		portgraph.WithDefaults(map[string]any{"offset": 1}))

	positiveType = portgraph.MustFromFunc(func(y float64) bool {
		return y > 0
	}, portgraph.WithName("positive"),
		portgraph.WithInputLabels("y"),
		portgraph.WithOutputLabels("positive"))
)

type demoResult struct {
	GraphID   string               `json:"graph_id" yaml:"graph_id"`
	X         float64              `json:"x" yaml:"x"`
	Y         any                  `json:"y" yaml:"y"`
	Branch    string               `json:"branch" yaml:"branch"`
	Snapshots []storage.Info       `json:"snapshots" yaml:"snapshots"`
	Graph     []portgraph.Snapshot `json:"graph" yaml:"graph"`
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a small graph computing factor*x + offset and branching on its sign",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		var store storage.Store = storage.NewMemoryStore()
		if engine.StoragePath != "" {
			sqlite, err := storage.NewSQLiteStore(engine.StoragePath)
			if err != nil {
				return err
			}
			store = sqlite
		}
		defer store.Close()

		common := []portgraph.Option{
			portgraph.WithLogger(logger),
			portgraph.WithStore(store),
			portgraph.WithStrictHints(engine.StrictHints),
			portgraph.WithMaxSignalDepth(engine.MaxSignalDepth),
		}
		if demoMetrics {
			common = append(common, portgraph.WithMetrics(observability.NewMetricsRecorder()), portgraph.WithTracing(true))
		}
		leaf := common
		if engine.ExecutorWorkers > 0 {
			pool := executor.NewPool(engine.ExecutorWorkers,
				executor.WithTaskTimeout(engine.SubmitTimeout),
				executor.WithLogger(logger))
			defer pool.Shutdown(context.Background())
			leaf = append(append([]portgraph.Option{}, common...), portgraph.WithExecutor(pool))
		}

		branch := "none"
		graph, err := buildDemo(leaf, common, &branch)
		if err != nil {
			return err
		}
		if err := graph.Run(ctx,
			portgraph.Kw("x", demoX),
			portgraph.Kw("factor", demoFactor),
			portgraph.Kw("offset", demoOffset),
		); err != nil {
			return err
		}

		infos, err := store.List(graph.GraphID())
		if err != nil {
			return err
		}
		result := demoResult{
			GraphID:   graph.GraphID(),
			X:         demoX,
			Y:         graph.Outputs().Value("y").Value(),
			Branch:    branch,
			Snapshots: infos,
			Graph:     []portgraph.Snapshot{graph.ToDict()},
		}
		for _, child := range graph.Children() {
			result.Graph = append(result.Graph, child.ToDict())
		}
		return render(cmd.OutOrStdout(), result)
	},
}

func init() {
	demoCmd.Flags().Float64Var(&demoX, "x", 3, "input value")
	demoCmd.Flags().Float64Var(&demoFactor, "factor", 2, "scale factor")
	demoCmd.Flags().Float64Var(&demoOffset, "offset", 1, "offset added after scaling")
	demoCmd.Flags().BoolVar(&demoMetrics, "telemetry", false, "record OpenTelemetry metrics and spans")
	rootCmd.AddCommand(demoCmd)
}

// buildDemo assembles
//
//	x -> affine(scale -> shift) -> positive -> check
//
// inside a "demo" macro. Leaf nodes get leafOpts, composites get
// compositeOpts. Composites stay inline: a pooled composite holds a worker
// while its children wait for one.
func buildDemo(leafOpts, compositeOpts []portgraph.Option, branch *string) (*portgraph.Macro, error) {
	affine, err := portgraph.DefineMacro("affine", func(m *portgraph.Macro) error {
		scale, err := scaleType.New(with(leafOpts, portgraph.WithParent(m))...)
		if err != nil {
			return err
		}
		shift, err := shiftType.New(with(leafOpts, portgraph.WithParent(m))...)
		if err != nil {
			return err
		}
		return shift.Inputs().Connect("x", scale.Outputs().MustGet("scaled"))
	}, portgraph.WithInputsMap(map[string]string{
		"x":      "scale__x",
		"factor": "scale__factor",
		"offset": "shift__offset",
	}), portgraph.WithOutputsMap(map[string]string{"y": "shift__y"}))
	if err != nil {
		return nil, err
	}

	opts := with(compositeOpts,
		portgraph.WithInputsMap(map[string]string{
			"x":      "input__user_input",
			"factor": "affine__factor",
			"offset": "affine__offset",
		}),
		portgraph.WithOutputsMap(map[string]string{
			"y":        "affine__y",
			"positive": "check__truth",
		}),
	)
	return portgraph.NewMacro("demo", func(m *portgraph.Macro) error {
		input, err := standard.UserInput.New(with(leafOpts, portgraph.WithLabel("input"), portgraph.WithParent(m))...)
		if err != nil {
			return err
		}
		calc, err := affine.New(with(compositeOpts, portgraph.WithParent(m))...)
		if err != nil {
			return err
		}
		sign, err := positiveType.New(with(leafOpts, portgraph.WithParent(m))...)
		if err != nil {
			return err
		}
		check, err := standard.If.Instantiate(with(leafOpts, portgraph.WithLabel("check"), portgraph.WithParent(m))...)
		if err != nil {
			return err
		}

		if err := calc.Inputs().Connect("x", input.Outputs().MustGet("user_input")); err != nil {
			return err
		}
		if err := sign.Inputs().Connect("y", calc.Outputs().MustGet("y")); err != nil {
			return err
		}
		if err := check.Inputs().Connect("condition", sign.Outputs().MustGet("positive")); err != nil {
			return err
		}

		for _, label := range []string{standard.TrueSignal, standard.FalseSignal} {
			taken := label
			check.Signals().Output.MustGet(label).Connect(portgraph.NewInputSignal("record_"+label, func(context.Context) error {
				*branch = taken
				return nil
			}))
		}
		return nil
	}, opts...)
}

func with(base []portgraph.Option, extra ...portgraph.Option) []portgraph.Option {
	out := make([]portgraph.Option, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
