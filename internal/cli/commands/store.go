package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelgraph/modelgraph/internal/cli/config"
	"github.com/modelgraph/modelgraph/internal/cli/ui"
	"github.com/modelgraph/modelgraph/internal/logger"
	"github.com/modelgraph/modelgraph/internal/serialization"
	"github.com/modelgraph/modelgraph/internal/store"
)

type storeOptions struct {
	driver        string
	dsn           string
	allowDangling bool
}

// config applies the store flags to the resolved configuration
func (o *storeOptions) config(cmd *cobra.Command, g *globalOptions) (*config.Config, error) {
	cfg := *g.cfg
	if cmd.Flags().Changed("driver") {
		cfg.Store.Driver = o.driver
	}
	if cmd.Flags().Changed("dsn") {
		cfg.Store.DSN = o.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (o *storeOptions) open(cmd *cobra.Command, g *globalOptions) (*config.Config, *store.Store, error) {
	cfg, err := o.config(cmd, g)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close()
		return nil, nil, err
	}
	return cfg, st, nil
}

func newStoreCommand(g *globalOptions) *cobra.Command {
	opts := &storeOptions{}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Move models between documents and the SQL store",
		Long: `Save model documents to the configured SQL store and load them back.

Supported drivers: sqlite3, postgres, pgx.

Examples:
  modelgraph store save model.yaml
  modelgraph store load out.json --driver postgres --dsn postgres://localhost/models`,
	}

	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "store driver (overrides store.driver)")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "store data source name (overrides store.dsn)")

	save := &cobra.Command{
		Use:   "save <input>",
		Short: "Replace the stored model with a model document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := opts.open(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			repo := newRepository(reg)
			err = serialization.Load(repo, args[0], serialization.Options{
				AllowDangling: opts.allowDangling,
				Logger:        logger.Named("serialization"),
			})
			if err != nil {
				return err
			}
			if err := st.Save(cmd.Context(), repo); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("saved %d elements to %s", repo.Len(), cfg.Store.Driver), color.NoColor)
			return nil
		},
	}
	save.Flags().BoolVar(&opts.allowDangling, "allow-dangling", false, "leave unresolvable references empty")

	load := &cobra.Command{
		Use:   "load <output>",
		Short: "Write the stored model to a model document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, st, err := opts.open(cmd, g)
			if err != nil {
				return err
			}
			defer st.Close()

			reg, err := newRegistry(cfg)
			if err != nil {
				return err
			}
			repo := newRepository(reg)
			if err := st.Load(cmd.Context(), repo, serialization.Options{Logger: logger.Named("serialization")}); err != nil {
				return err
			}
			if err := serialization.Save(repo, args[0]); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(),
				fmt.Sprintf("wrote %d elements to %s", repo.Len(), args[0]), color.NoColor)
			return nil
		},
	}

	cmd.AddCommand(save, load)
	return cmd
}
