package main

import (
	"strings"

	"github.com/spf13/cobra"

	"QVeritas/internal/compute"
)

func newComputeCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compute <operation> <json-arguments>",
		Short: "执行数值运算（" + strings.Join(compute.Operations(), ", ") + "）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.orchestrator.Compute().ComputePayload(ctx, args[0], []byte(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"operation": args[0],
				"result":    result,
			})
		},
	}
}
