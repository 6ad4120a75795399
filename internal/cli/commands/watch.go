package commands

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/logger"
	"github.com/modelgraph/modelgraph/internal/watch"
)

func newWatchCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	var delay = watch.DefaultDelay

	cmd := &cobra.Command{
		Use:   "watch <input> <output>",
		Short: "Run the synchronization again whenever the input changes",
		Long: `Run the synchronization like 'modelgraph run', then wait for changes to
the input file and run it again after each change. Stops on interrupt.

Examples:
  modelgraph watch model.yaml out.yaml
  modelgraph watch v1.yaml out.yaml -t pets --delay 500ms`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, output := args[0], args[1]
			log := logger.Named("watch")

			if err := opts.run(cmd, g, input, output); err != nil {
				return err
			}

			var mu sync.Mutex
			w, err := watch.New([]string{input}, func([]string) error {
				mu.Lock()
				defer mu.Unlock()
				log.Info("input changed, synchronizing", zap.String("input", input))
				return opts.run(cmd, g, input, output)
			}, watch.WithLogger(log), watch.WithDelay(delay))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info("watching for changes", zap.String("input", input))
			return w.Run(ctx)
		},
	}

	cmd.Flags().IntVarP(&opts.iterations, "iterations", "n", 1, "number of synchronization rounds")
	cmd.Flags().StringVarP(&opts.transformation, "transformation", "t", "copy", "transformation to run")
	cmd.Flags().BoolVar(&opts.backward, "backward", false, "treat the input as the right-hand model")
	cmd.Flags().BoolVar(&opts.allowDangling, "allow-dangling", false, "leave unresolvable references empty")
	cmd.Flags().DurationVar(&delay, "delay", watch.DefaultDelay, "quiet period before a change is handled")

	return cmd
}
