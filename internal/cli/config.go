package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/config"
)

func newConfigCmd(f *rootFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the effective configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			showConfig(cfg)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Run the boot-time configuration checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("configuration invalid: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("data layout: %w", err)
			}
			fmt.Println(approveStyle.Render("configuration ok"))
			return nil
		},
	})

	return configCmd
}

func showConfig(cfg *config.Config) {
	fmt.Println(headerStyle.Render("effective configuration"))
	fmt.Println()
	fmt.Printf("app name              %s\n", cfg.AppName)
	fmt.Printf("data dir              %s\n", cfg.DataDir)
	fmt.Printf("price data dir        %s\n", cfg.PriceDataDir())
	fmt.Printf("bias cache            %s\n", cfg.BiasCachePath)
	fmt.Printf("audit log             %s\n", cfg.AuditLogPath)
	fmt.Println()
	fmt.Printf("llm provider          %s\n", cfg.LLMProvider)
	fmt.Printf("model                 %s\n", cfg.Model)
	fmt.Printf("base url              %s\n", cfg.BaseURL)
	fmt.Printf("offline               %t\n", cfg.Offline)
	if cfg.APIKey != "" {
		fmt.Printf("api key               set\n")
	} else {
		fmt.Printf("api key               not set\n")
	}
	fmt.Println()
	fmt.Printf("portfolio value       %.2f\n", cfg.DefaultPortfolioValue)
	fmt.Printf("max risk bps          %.1f\n", cfg.MaxRiskBps)
	fmt.Printf("analysis window       %d bars\n", cfg.Window)
	fmt.Println()
	fmt.Printf("health addr           %s\n", cfg.HealthAddr)
	fmt.Printf("shutdown timeout      %s\n", cfg.ShutdownTimeout)
	fmt.Printf("log level             %s\n", cfg.LogLevel)
	fmt.Printf("log format            %s\n", cfg.LogFormat)
	fmt.Printf("eino debug            %t\n", cfg.EinoDebug)
	if cfg.EinoDebug {
		fmt.Printf("eino debug url        http://localhost:%d\n", cfg.EinoDebugPort)
	}
}
