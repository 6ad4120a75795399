package commands

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelgraph/modelgraph/internal/logger"
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/serialization"
	"github.com/modelgraph/modelgraph/internal/transform"
)

type runOptions struct {
	iterations     int
	transformation string
	backward       bool
	allowDangling  bool
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <input> <output>",
		Short: "Load a model, synchronize it with a transformation and save it",
		Long: `Load the input model, synchronize it N times with a second model through
a transformation and save the input model to the output path.

Every iteration synchronizes forward, then backward. With --backward the
input is the right-hand model and the order is reversed. One timing line
is printed per phase:

  <transformation>-<direction>;<phase>;<iterations>;<milliseconds>

Transformations: ` + strings.Join(transform.Names(), ", ") + `

Examples:
  modelgraph run model.yaml out.yaml
  modelgraph run v1.yaml out.yaml -t pets -n 100
  modelgraph run v2.json out.json -t pets --backward`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, g, args[0], args[1])
		},
	}

	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 1, "number of synchronization rounds")
	cmd.Flags().StringVarP(&opts.transformation, "transformation", "t", "copy", "transformation to run")
	cmd.Flags().BoolVar(&opts.backward, "backward", false, "treat the input as the right-hand model")
	cmd.Flags().BoolVar(&opts.allowDangling, "allow-dangling", false, "leave unresolvable references empty")

	return cmd
}

func (o *runOptions) run(cmd *cobra.Command, g *globalOptions, input, output string) error {
	cfg := *g.cfg
	if cmd.Flags().Changed("iterations") {
		cfg.Iterations = o.iterations
	}
	if cmd.Flags().Changed("transformation") {
		cfg.Transformation = o.transformation
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg, err := newRegistry(&cfg)
	if err != nil {
		return err
	}
	t, err := lookupTransformation(cfg.Transformation)
	if err != nil {
		return err
	}

	var cj *changeJournal
	job := &transform.Job{
		Transformation: t,
		Backward:       o.backward,
		Iterations:     cfg.Iterations,
		Input:          newRepository(reg),
		Result:         newRepository(reg),
		Load: func(ctx context.Context, repo *model.Repository) error {
			err := serialization.Load(repo, input, serialization.Options{
				AllowDangling: o.allowDangling,
				Logger:        logger.Named("serialization"),
			})
			if err != nil {
				return err
			}
			cj, err = attachJournal(ctx, &cfg, repo)
			return err
		},
		Save: func(_ context.Context, repo *model.Repository) error {
			return serialization.Save(repo, output)
		},
	}

	runner := transform.NewRunner(cmd.OutOrStdout(), transform.WithLogger(logger.Named("runner")))
	err = runner.Run(cmd.Context(), job)
	if ferr := cj.finish(); err == nil {
		err = ferr
	}
	return err
}
