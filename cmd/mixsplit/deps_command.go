package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mixsplit/internal/deps"
	"mixsplit/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check the external binaries a run needs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			missing := deps.Missing(statuses)
			if ctx.JSONMode() {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, status := range statuses {
					kind, message := statusOK, status.Path
					switch {
					case !status.Available && status.Optional:
						kind, message = statusWarn, status.Detail+" (optional)"
					case !status.Available:
						kind, message = statusError, status.Detail
					}
					fmt.Fprintln(out, renderStatusLine(status.Name, kind, message, colorize))
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
}
