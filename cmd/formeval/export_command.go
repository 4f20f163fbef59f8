package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var expert string
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one rater's scores as CSV",
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
			data, n, err := svc.Export(cmd.Context(), expert)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d rows for %s to %s\n", n, expert, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&expert, "expert", "", "Rater identity")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (stdout when empty)")
	_ = cmd.MarkFlagRequired("expert")
	return cmd
}
