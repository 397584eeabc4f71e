// Package cli implements docctl, the operator command line for the
// documentation chatbot.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/bootstrap"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/internal/chat"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/config"
	"github.com/Ayirileslie/enterprise-documentation-chatbot/pkg/logger"
)

type app struct {
	configPath string
	logLevel   string
	stdout     io.Writer
	stderr     io.Writer

	// overrides used by tests
	config    *config.Config
	generator chat.Generator

	services *bootstrap.Services
}

// Execute runs docctl with the process arguments and releases every
// resource opened by the command before returning.
func Execute(ctx context.Context) error {
	a := &app{stdout: os.Stdout, stderr: os.Stderr}
	defer a.close()

	return newRootCommand(a).ExecuteContext(ctx)
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "docctl",
		Short:         "Manage and query the enterprise documentation chatbot",
		Long:          "docctl ingests company documents, asks questions against them and evaluates answer quality without going through the HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a config file (default: ./config.yaml)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newIngestCmd(a),
		newAskCmd(a),
		newSearchCmd(a),
		newDocumentsCmd(a),
		newStatsCmd(a),
		newEvaluateCmd(a),
		newCacheCmd(a),
	)
	return cmd
}

// open loads configuration and builds the service graph once per run.
func (a *app) open(ctx context.Context) (*bootstrap.Services, error) {
	if a.services != nil {
		return a.services, nil
	}

	cfg := a.config
	if cfg == nil {
		var err error
		if a.configPath != "" {
			cfg, err = config.LoadFile(a.configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return nil, err
		}
	}

	err := logger.Init(a.logLevel, "console", "stderr", logger.Rotation{})
	if err != nil {
		return nil, err
	}

	services, err := bootstrap.Build(ctx, cfg, bootstrap.Options{Generator: a.generator})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	a.services = services
	return services, nil
}

func (a *app) close() {
	if a.services != nil {
		a.services.Close()
		a.services = nil
	}
	logger.Sync()
}
