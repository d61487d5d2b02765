package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/fetch"
)

func newFetchCmd(f *rootFlags) *cobra.Command {
	var (
		days      int
		withQuote bool
	)

	cmd := &cobra.Command{
		Use:   "fetch SYMBOL...",
		Short: "Download daily price history into the data directory",
		Long: `Fetch downloads a trailing window of daily bars per symbol and stores
each series as a dated price file the pipeline's market tool reads.
Example: tradehelm fetch AAPL MSFT --days 180`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootLocal(cmd, f)
			if err != nil {
				return err
			}

			client := fetch.New(cfg.PriceDataDir(), log)
			symbols := normalizeSymbols(args)

			failed := 0
			for _, symbol := range symbols {
				path, bars, ferr := client.FetchDaily(cmd.Context(), symbol, days)
				if ferr != nil {
					failed++
					fmt.Println(failStyle.Render(symbol) + "  " + ferr.Error())
					continue
				}
				fmt.Printf("%s  %d bars -> %s\n", headerStyle.Render(symbol), bars, path)

				if withQuote {
					q, qerr := client.LatestQuote(cmd.Context(), symbol)
					if qerr != nil {
						fmt.Println(labelStyle.Render("quote unavailable: " + qerr.Error()))
						continue
					}
					fmt.Println(renderQuote(q))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(symbols))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 120, "trailing days of history to download")
	cmd.Flags().BoolVar(&withQuote, "quote", false, "also print the live quote per symbol")

	return cmd
}
