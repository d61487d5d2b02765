// Package debug wires the optional eino devops visual debugger.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/caldway/tradehelm/internal/config"
	"github.com/caldway/tradehelm/pkg/logger"
)

// Init starts the eino devops debug server when the config asks for
// it. Compiled pipeline graphs then show up in the web debugger while
// runs execute. A disabled config is a no-op.
func Init(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if !cfg.EinoDebug {
		return nil
	}

	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("init eino debug server: %w", err)
	}

	log.Info("eino debug server up",
		logger.String("url", fmt.Sprintf("http://localhost:%d", cfg.EinoDebugPort)))
	return nil
}
