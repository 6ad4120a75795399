package transform

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/model"
)

// Phase names reported by the runner
const (
	PhaseLoad           = "Load"
	PhaseInitialize     = "Initialize"
	PhaseTransformation = "Transformation"
)

// Job describes one run: the input model is loaded into Input, the
// transformation runs Iterations times between Input and Result, and the
// input model is saved afterwards.
type Job struct {
	Transformation Transformation
	// Backward makes the input the right model instead of the left one
	Backward   bool
	Iterations int

	Input  *model.Repository
	Result *model.Repository

	Load func(ctx context.Context, repo *model.Repository) error
	Save func(ctx context.Context, repo *model.Repository) error
}

// Scenario names the job in timing lines, e.g. "copy-forward"
func (j *Job) Scenario() string {
	if j.Backward {
		return j.Transformation.Name() + "-backward"
	}
	return j.Transformation.Name() + "-forward"
}

// Runner executes jobs and reports the elapsed time of every phase as
// "scenario;phase;iterations;milliseconds"
type Runner struct {
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogger sets the runner logger
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the time source used for phase timings
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner writing timing lines to out
func NewRunner(out io.Writer, opts ...RunnerOption) *Runner {
	r := &Runner{out: out, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes job
func (r *Runner) Run(ctx context.Context, job *Job) error {
	if job.Transformation == nil {
		return errors.New("job has no transformation")
	}
	if job.Iterations < 1 {
		return errors.Newf("iterations must be at least 1, got %d", job.Iterations)
	}
	if job.Input == nil || job.Result == nil {
		return errors.New("job needs an input and a result repository")
	}

	scenario := job.Scenario()
	start := r.now()
	complete := func(phase string) error {
		elapsed := r.now().Sub(start)
		ms := float64(elapsed) / float64(time.Millisecond)
		r.logger.Info("phase completed",
			zap.String("scenario", scenario),
			zap.String("phase", phase),
			zap.Int("iterations", job.Iterations),
			zap.Duration("elapsed", elapsed))
		if _, err := fmt.Fprintf(r.out, "%s;%s;%d;%.2f\n", scenario, phase, job.Iterations, ms); err != nil {
			return errors.Wrap(err, "failed to write timing")
		}
		start = r.now()
		return nil
	}

	if job.Load != nil {
		if err := job.Load(ctx, job.Input); err != nil {
			return errors.Wrap(err, "load failed")
		}
	}
	if err := complete(PhaseLoad); err != nil {
		return err
	}

	if err := job.Transformation.Initialize(); err != nil {
		return errors.Wrapf(err, "failed to initialize %s", job.Transformation.Name())
	}
	if err := complete(PhaseInitialize); err != nil {
		return err
	}

	left, right := job.Input, job.Result
	first, second := LeftToRight, RightToLeft
	if job.Backward {
		left, right = job.Result, job.Input
		first, second = RightToLeft, LeftToRight
	}
	for i := 0; i < job.Iterations; i++ {
		for _, dir := range []Direction{first, second} {
			if err := job.Transformation.Synchronize(ctx, left, right, dir); err != nil {
				return errors.Wrapf(err, "iteration %d (%s)", i+1, dir)
			}
		}
	}
	if err := complete(PhaseTransformation); err != nil {
		return err
	}

	if job.Save != nil {
		if err := job.Save(ctx, job.Input); err != nil {
			return errors.Wrap(err, "save failed")
		}
	}
	return nil
}
