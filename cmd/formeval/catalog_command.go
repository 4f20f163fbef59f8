package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the videos available for rating",
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
			items, err := svc.Catalog(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for i, it := range items {
				rows = append(rows, []string{strconv.Itoa(i + 1), it.Exercise, it.VideoName, it.URL})
			}
			printTable(cmd.OutOrStdout(),
				[]string{"#", "Exercise", "Video", "URL"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			)
			return nil
		},
	}
}
