package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spawn-mcp/campaign-synth/pkg/app"
	"github.com/spawn-mcp/campaign-synth/pkg/campaign"
	"github.com/spawn-mcp/campaign-synth/pkg/config"
	"github.com/spawn-mcp/campaign-synth/pkg/json"
	"github.com/spawn-mcp/campaign-synth/pkg/logger"
	"github.com/spawn-mcp/campaign-synth/pkg/request"
)

var (
	requestPath  string
	campaignPath string
)

var synthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize a campaign for a request read from a file or stdin",
	Args:  cobra.NoArgs,
	RunE:  runSynthesize,
}

var validateCmd = &cobra.Command{
	Use:   "validate [--campaign file.json]",
	Short: "Check a campaign document for every required section",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the required campaign layout",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cmd.OutOrStdout(), campaign.Layout())
	},
}

func init() {
	synthesizeCmd.Flags().StringVarP(&requestPath, "request", "r", "-", "request JSON file, - for stdin")
	validateCmd.Flags().StringVarP(&campaignPath, "campaign", "c", "-", "campaign or outcome JSON file, - for stdin")
}

func runSynthesize(cmd *cobra.Command, args []string) error {
	raw, err := readInput(cmd, requestPath)
	if err != nil {
		return err
	}
	req, err := request.NormalizeJSON(raw)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logger.New(logger.Config{
		Environment: cfg.Service.Environment,
		LogLevel:    cfg.Service.LogLevel,
		ServiceName: cfg.Service.Name,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, app.Overrides{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, synthErr := a.Orchestrator.Synthesize(ctx, req)
	if err := printJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if synthErr != nil {
		log.Error("Campaign synthesis failed", zap.Error(synthErr))
		return synthErr
	}
	if out.Failed() {
		return fmt.Errorf("campaign synthesis failed: %s", out.Error)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := campaignPath
	if len(args) == 1 {
		path = args[0]
	}
	raw, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("campaign is not a JSON object: %w", err)
	}
	// Outcome documents wrap the campaign.
	if inner, ok := doc["campaign"].(map[string]any); ok {
		doc = inner
	}
	if err := campaign.Validate(doc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "campaign is valid")
	return nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
