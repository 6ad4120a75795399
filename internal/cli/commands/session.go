package commands

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/modelgraph/modelgraph/internal/cli/config"
	"github.com/modelgraph/modelgraph/internal/cli/ui"
	"github.com/modelgraph/modelgraph/internal/journal"
	"github.com/modelgraph/modelgraph/internal/logger"
	"github.com/modelgraph/modelgraph/internal/model"
	"github.com/modelgraph/modelgraph/internal/model/meta"
	"github.com/modelgraph/modelgraph/internal/scenario/pets"
	"github.com/modelgraph/modelgraph/internal/store"
	"github.com/modelgraph/modelgraph/internal/transform"
)

// suggestionError carries "did you mean" candidates for the error printer
type suggestionError struct {
	err         error
	suggestions []string
}

func (e *suggestionError) Error() string { return e.err.Error() }
func (e *suggestionError) Unwrap() error { return e.err }

func withSuggestions(err error, target string, candidates []string) error {
	if s := ui.Suggest(target, candidates); len(s) > 0 {
		return &suggestionError{err: err, suggestions: s}
	}
	return err
}

func suggestionsFor(err error) []string {
	var se *suggestionError
	if errors.As(err, &se) {
		return se.suggestions
	}
	return nil
}

// newRegistry declares the configured metamodel, or the built-in pets
// metamodel when none is configured
func newRegistry(cfg *config.Config) (*meta.Registry, error) {
	reg := meta.NewRegistry()
	if cfg.Metamodel == "" {
		if err := pets.Declare(reg); err != nil {
			return nil, err
		}
		return reg, nil
	}

	m, err := meta.LoadMetamodel(cfg.Metamodel)
	if err != nil {
		return nil, errors.WithHint(err, "set metamodel in modelgraph.yaml or pass --metamodel")
	}
	if err := reg.DeclareMetamodel(m); err != nil {
		return nil, err
	}
	// surface declaration errors before any model is read
	if _, err := reg.ResolveAll(); err != nil {
		return nil, err
	}
	return reg, nil
}

func newRepository(reg *meta.Registry) *model.Repository {
	return model.NewRepository(reg, model.WithLogger(logger.Named("repository")))
}

func lookupTransformation(name string) (transform.Transformation, error) {
	t, err := transform.Lookup(name)
	if err != nil {
		return nil, withSuggestions(err, name, transform.Names())
	}
	return t, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Store.Driver, cfg.Store.DSN, store.WithLogger(logger.Named("store")))
}

// changeJournal is an attached journal together with its sink
type changeJournal struct {
	*journal.Journal
	closeSink func() error
}

// attachJournal starts journaling repo when the journal is enabled. The
// sink is a Redis stream when an address is configured, memory otherwise.
func attachJournal(ctx context.Context, cfg *config.Config, repo *model.Repository) (*changeJournal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	log := logger.Named("journal")

	var (
		sink      journal.Sink
		closeSink = func() error { return nil }
	)
	if addr := cfg.Journal.Redis.Addr; addr != "" {
		rs, err := journal.NewRedisSink(ctx, journal.RedisConfig{
			Addr:     addr,
			Password: cfg.Journal.Redis.Password,
			DB:       cfg.Journal.Redis.DB,
			Stream:   cfg.Journal.Redis.Stream,
		})
		if err != nil {
			return nil, err
		}
		sink, closeSink = rs, rs.Close
		log.Info("journal writes to redis", zap.String("addr", addr), zap.String("stream", cfg.Journal.Redis.Stream))
	} else {
		sink = journal.NewMemorySink()
	}

	j := journal.Attach(ctx, repo, sink, journal.WithLogger(log))
	return &changeJournal{Journal: j, closeSink: closeSink}, nil
}

// finish detaches the journal and reports what it recorded
func (j *changeJournal) finish() error {
	if j == nil {
		return nil
	}
	changed := len(j.Changed())
	j.Detach()
	logger.Named("journal").Info("journal closed",
		zap.Uint64("records", j.Sequence()),
		zap.Int("changed_elements", changed),
		zap.Int("failures", j.Failures()))
	return j.closeSink()
}
