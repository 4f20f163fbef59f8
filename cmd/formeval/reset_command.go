package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	service "github.com/okian/formeval/internal/app"
)

func newResetCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every stored score (admin mode only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("reset deletes every stored score; rerun with --yes to confirm")
			}
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
			if err := svc.Reset(cmd.Context()); err != nil {
				if errors.Is(err, service.ErrAdminDisabled) {
					return fmt.Errorf("reset refused: set admin_mode in the configuration: %w", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Results table cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}
