package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/tools"
)

func newBiasCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bias SYMBOL...",
		Short: "Show the cached directional bias for symbols",
		Long: `Bias reads the external analyst cache the research stage consults and
prints each symbol's snapshot with its freshness verdict. The command
uses the same lookup the pipeline does, stale handling included.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootLocal(cmd, f)
			if err != nil {
				return err
			}

			bt := tools.NewBiasTool(cfg.BiasCachePath, log)
			for _, symbol := range normalizeSymbols(args) {
				lookup, lerr := bt.Lookup(cmd.Context(), &tools.BiasInput{Symbol: symbol})
				if lerr != nil {
					return lerr
				}
				fmt.Println(renderBias(lookup))
			}
			return nil
		},
	}

	return cmd
}
