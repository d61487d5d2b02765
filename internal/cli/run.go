package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/internal/debug"
	"github.com/caldway/tradehelm/internal/models"
	"github.com/caldway/tradehelm/internal/pipeline"
	"github.com/caldway/tradehelm/internal/recorder"
	"github.com/caldway/tradehelm/internal/server"
	"github.com/caldway/tradehelm/pkg/logger"
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

func newRunCmd(f *rootFlags) *cobra.Command {
	var (
		jsonOut     bool
		interactive bool
		portfolio   float64
		window      int
	)

	cmd := &cobra.Command{
		Use:   "run [SYMBOL...]",
		Short: "Run the decision pipeline for one or more symbols",
		Long: `Run drives each symbol through research, signal, risk, and execution.
Symbols run concurrently and share only the decision log.
Example: tradehelm run AAPL MSFT --offline`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := boot(cmd, f)
			if err != nil {
				return err
			}
			if portfolio > 0 {
				cfg.DefaultPortfolioValue = portfolio
			}
			if window > 0 {
				cfg.Window = window
			}

			symbols := normalizeSymbols(args)
			if interactive {
				symbols, err = promptRunSetup(cfg, symbols)
				if err != nil {
					return err
				}
				// Prompts may have flipped offline mode off.
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}
			if len(symbols) == 0 {
				return fmt.Errorf("at least one symbol is required (or use --interactive)")
			}

			return executeRuns(cmd.Context(), cfg, log, symbols, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "prompt for run parameters")
	cmd.Flags().Float64Var(&portfolio, "portfolio", 0, "portfolio value backing the risk budget")
	cmd.Flags().IntVar(&window, "window", 0, "trailing bars to analyze")

	return cmd
}

// executeRuns owns the process lifecycle around a batch of pipeline
// runs: the recorder and the health listener come up before the first
// run and shut down gracefully after the last result is printed.
func executeRuns(ctx context.Context, cfg *config.Config, log *logger.Logger, symbols []string, jsonOut bool) error {
	rec := recorder.New(cfg.AuditLogPath, log)
	if err := rec.EnsureStore(); err != nil {
		return fmt.Errorf("prepare decision log: %w", err)
	}

	srv := server.New(rec, log, server.WithAddr(cfg.HealthAddr))
	srv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Stop(shutdownCtx); err != nil {
			log.Warn("health listener shutdown", logger.Err(err))
		}
		if err := rec.Close(shutdownCtx); err != nil {
			log.Warn("recorder close", logger.Err(err))
		}
	}()

	if err := debug.Init(ctx, cfg, log); err != nil {
		return err
	}

	p, err := pipeline.New(ctx, cfg, rec, log)
	if err != nil {
		return err
	}

	results := p.RunMany(ctx, symbols)

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			fmt.Println(renderResult(res))
		}
	}

	failed := 0
	for _, res := range results {
		if res.Status != models.RunDone {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

// promptRunSetup collects run parameters interactively. Symbols given
// on the command line become the default answer.
func promptRunSetup(cfg *config.Config, preset []string) ([]string, error) {
	var symbolsLine string
	err := survey.AskOne(&survey.Input{
		Message: "Symbols to analyze (comma separated):",
		Default: strings.Join(preset, ","),
		Help:    "Example: AAPL,MSFT,NVDA",
	}, &symbolsLine, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		symbols := normalizeSymbols(strings.FieldsFunc(str, isSymbolSep))
		if len(symbols) == 0 {
			return fmt.Errorf("enter at least one symbol")
		}
		for _, s := range symbols {
			if !symbolPattern.MatchString(s) {
				return fmt.Errorf("invalid symbol %q (letters, numbers, dots, and hyphens only)", s)
			}
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	symbols := normalizeSymbols(strings.FieldsFunc(symbolsLine, isSymbolSep))

	portfolioAnswer := strconv.FormatFloat(cfg.DefaultPortfolioValue, 'f', -1, 64)
	err = survey.AskOne(&survey.Input{
		Message: "Portfolio value backing the risk budget:",
		Default: portfolioAnswer,
	}, &portfolioAnswer, survey.WithValidator(func(val interface{}) error {
		str, _ := val.(string)
		v, perr := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if perr != nil || v <= 0 {
			return fmt.Errorf("enter a positive number")
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	if v, perr := strconv.ParseFloat(strings.TrimSpace(portfolioAnswer), 64); perr == nil {
		cfg.DefaultPortfolioValue = v
	}

	offline := cfg.Offline
	if err := survey.AskOne(&survey.Confirm{
		Message: "Run offline (deterministic reasoner, no model provider)?",
		Default: offline,
	}, &offline); err != nil {
		return nil, err
	}
	cfg.Offline = offline

	confirmed := false
	if err := survey.AskOne(&survey.Confirm{
		Message: fmt.Sprintf("Run the pipeline for %s?", strings.Join(symbols, ", ")),
		Default: true,
	}, &confirmed); err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, fmt.Errorf("run cancelled")
	}

	return symbols, nil
}

func isSymbolSep(r rune) bool {
	return r == ',' || r == ' ' || r == '\t'
}

// normalizeSymbols uppercases, trims, and dedupes while keeping the
// original order.
func normalizeSymbols(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
