package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/caldway/tradehelm/internal/recorder"
)

func newHealthCmd(f *rootFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query a running process's health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.HealthAddr
			}

			client := resty.New().
				SetBaseURL(healthBaseURL(addr)).
				SetTimeout(5 * time.Second)

			resp, err := client.R().SetContext(cmd.Context()).Get("/healthz")
			if err != nil {
				return fmt.Errorf("health request: %w", err)
			}
			if resp.StatusCode() != 200 {
				return fmt.Errorf("health endpoint returned %d: %s", resp.StatusCode(), resp.String())
			}

			var h recorder.Health
			if err := json.Unmarshal(resp.Body(), &h); err != nil {
				return fmt.Errorf("parse health response: %w", err)
			}

			fmt.Println(renderHealth(&h))
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "health listener address (defaults to the configured health_addr)")

	return cmd
}

// healthBaseURL turns a bind address like ":8090" into a reachable
// base URL.
func healthBaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		return "http://127.0.0.1" + addr
	}
	return "http://" + addr
}
