package main

import (
	"github.com/spf13/cobra"

	"github.com/copyleftdev/hive/internal/optimization/colony"
	"github.com/copyleftdev/hive/internal/report"
)

type runFlags struct {
	bees      int
	iters     int
	limit     int
	lower     float64
	upper     float64
	seed      int64
	objective string
	quiet     bool
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single optimization and print its progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f)
		},
	}

	cmd.Flags().IntVar(&f.bees, "bees", colony.DefaultNumBees, "Number of food sources (ABC_NUM_BEES)")
	cmd.Flags().IntVar(&f.iters, "iters", colony.DefaultMaxIter, "Number of iterations (ABC_MAX_ITER)")
	cmd.Flags().IntVar(&f.limit, "limit", colony.DefaultLimit, "Failed trials before a scout resets a source (ABC_LIMIT)")
	cmd.Flags().Float64Var(&f.lower, "lower", colony.DefaultLower, "Lower bound of the search interval (ABC_LOWER)")
	cmd.Flags().Float64Var(&f.upper, "upper", colony.DefaultUpper, "Upper bound of the search interval (ABC_UPPER)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed, 0 seeds from the clock (ABC_SEED)")
	cmd.Flags().StringVar(&f.objective, "objective", "sphere", "Objective name, see 'hive objectives' (ABC_OBJECTIVE)")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print the final result")

	return cmd
}

// run applies the flags the user set on top of the environment defaults.
func (a *app) run(cmd *cobra.Command, f *runFlags) error {
	flags := cmd.Flags()
	c := &a.cfg.Colony
	if flags.Changed("bees") {
		c.NumBees = f.bees
	}
	if flags.Changed("iters") {
		c.MaxIter = f.iters
	}
	if flags.Changed("limit") {
		c.Limit = f.limit
	}
	if flags.Changed("lower") {
		c.Lower = f.lower
	}
	if flags.Changed("upper") {
		c.Upper = f.upper
	}
	if flags.Changed("seed") {
		c.Seed = f.seed
	}
	if flags.Changed("objective") {
		c.Objective = f.objective
	}

	cc, err := a.cfg.ColonyConfig()
	if err != nil {
		return err
	}

	logger := a.logger.WithFields(map[string]interface{}{
		"objective": c.Objective,
		"num_bees":  cc.NumBees,
		"max_iter":  cc.MaxIter,
		"limit":     cc.Limit,
		"seed":      cc.RandomSeed,
	})
	logObserver := report.NewLogObserver(logger)
	text := report.NewTextReporter(cmd.OutOrStdout())

	opts := []colony.Option{
		colony.WithObserver(logObserver),
		colony.WithLogger(logger.Zap()),
	}
	if !f.quiet {
		opts = append(opts, colony.WithObserver(text))
	}

	opt, err := colony.New(cc, opts...)
	if err != nil {
		return err
	}
	logger.Info("optimization started")

	res, err := opt.Run()
	if err != nil {
		return err
	}
	logObserver.Finished(res)

	return text.Final(res.Best)
}
