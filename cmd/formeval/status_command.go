package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var expert string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a rater's progress through the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.Context())
			if err != nil {
				return err
			}
			log, err := ctx.initLogging(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			svc, err := ctx.newService(cmd.Context(), log)
			if err != nil {
				return err
			}
			for _, w := range svc.Start(cmd.Context()) {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			p, err := svc.Progress(cmd.Context(), expert)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(),
				[]string{"Expert", "Scored", "Remaining", "Total"},
				[][]string{{p.Expert, strconv.Itoa(p.Scored), strconv.Itoa(p.Remaining), strconv.Itoa(p.Total)}},
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&expert, "expert", "", "Rater identity")
	_ = cmd.MarkFlagRequired("expert")
	return cmd
}
