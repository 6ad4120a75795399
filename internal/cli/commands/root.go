package commands

import (
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelgraph/modelgraph/internal/cli/config"
	"github.com/modelgraph/modelgraph/internal/cli/ui"
	"github.com/modelgraph/modelgraph/internal/logger"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags and the configuration they
// resolve to before a subcommand runs
type globalOptions struct {
	configPath string
	metamodel  string
	logLevel   string
	noColor    bool

	cfg *config.Config
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "modelgraph",
		Short: "Observable in-memory model graphs",
		Long: color.CyanString(`modelgraph - reflective, observable model graphs

modelgraph loads models described by a metamodel, keeps their references
consistent as elements change or disappear, and synchronizes models through
transformations.

Features:
  • Reflective access to every feature by name
  • Change events before and after every mutation
  • References reset when their target is deleted
  • YAML/JSON documents and SQL stores`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ./modelgraph.yaml)")
	flags.StringVar(&opts.metamodel, "metamodel", "", "metamodel file (default: built-in pets metamodel)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewCompletionCommand())
	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newInspectCommand(opts))
	rootCmd.AddCommand(newStoreCommand(opts))
	rootCmd.AddCommand(newWatchCommand(opts))

	return rootCmd
}

// resolve loads the configuration, applies the persistent flags and
// installs the logger
func (o *globalOptions) resolve(cmd *cobra.Command) error {
	if o.noColor {
		color.NoColor = true
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("metamodel") {
		cfg.Metamodel = o.metamodel
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.JSON); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the modelgraph version, Git commit, build date, and Go version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			kv.AddRow("modelgraph version", Version)
			kv.AddRow("Git commit", GitCommit)
			kv.AddRow("Build date", BuildDate)
			kv.AddRow("Go version", goVer)
			kv.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		ui.WriteError(rootCmd.ErrOrStderr(), err, ui.ErrorOptions{
			Suggestions: suggestionsFor(err),
			NoColor:     color.NoColor,
		})
		return err
	}
	return nil
}
