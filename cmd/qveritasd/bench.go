package main

import (
	"github.com/spf13/cobra"
)

func newBenchCmd(opts *cliOptions) *cobra.Command {
	var sizes []int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "按不同载荷大小测量 VerifyAndProve 吞吐量",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, opts.cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.orchestrator.Benchmark(ctx, sizes)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", nil, "载荷大小（字节），默认 1024,4096,16384,65536")
	return cmd
}
