package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/hive/internal/config"
	"github.com/copyleftdev/hive/internal/logging"
	"github.com/copyleftdev/hive/internal/optimization"
)

const version = "0.1.0"

// app carries what every subcommand needs once the root has set it up.
type app struct {
	cfg    *config.Config
	logger *logging.Logger

	envFile   string
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hive",
		Short: "Artificial Bee Colony minimizer",
		Long: `hive minimizes a scalar objective over a bounded interval with the
Artificial Bee Colony algorithm. Defaults come from the ABC_*, LOG_* and
OPT_* environment variables; flags override them.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment variables from a dotenv file; existing variables win")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format (json, console); overrides LOG_FORMAT")

	root.AddCommand(newRunCmd(a), newServeCmd(a), newObjectivesCmd(), newVersionCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}

	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List the built-in objective functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range optimization.ObjectiveNames() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", name, optimization.DescribeObjective(name))
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hive %s\n", version)
		},
	}
}
