package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/formeval/internal/simulate"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var cfg simulate.Config

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a running API with synthetic raters and verify their exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			log, err := ctx.initLogging(appCfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			stats, runErr := simulate.Run(cmd.Context(), cfg, log.Named("simulate"))
			printTable(cmd.OutOrStdout(),
				[]string{"Raters", "Submitted", "Saved", "Duplicates", "Ignored", "Failed", "Rows", "Duration"},
				[][]string{{
					strconv.Itoa(stats.Raters),
					strconv.FormatInt(stats.Submitted, 10),
					strconv.FormatInt(stats.Saved, 10),
					strconv.FormatInt(stats.Duplicates, 10),
					strconv.FormatInt(stats.Ignored, 10),
					strconv.FormatInt(stats.Failed, 10),
					strconv.Itoa(stats.RowsChecked),
					stats.Duration.Round(time.Millisecond).String(),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			)
			return runErr
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:9080", "Base URL of the rating API")
	cmd.Flags().IntVar(&cfg.Raters, "raters", 10, "Number of synthetic raters")
	cmd.Flags().IntVar(&cfg.Workers, "workers", 4, "Raters rated concurrently")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "HTTP request timeout")
	cmd.Flags().Float64Var(&cfg.RepeatRate, "repeat-rate", 0.1, "Fraction of submissions sent twice")
	cmd.Flags().StringVar(&cfg.Prefix, "prefix", "SIM", "Rater name prefix")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	return cmd
}
