package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/linguacast/linguacast/internal/render"
	"github.com/linguacast/linguacast/pkg/relay/pipeline"
)

func newCheckCmd(configPath *string) *cobra.Command {
	var timeout time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe every pipeline tier and report reachability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := defaultServeDeps().loadConfig(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			orch, err := buildPipeline(cfg, logger)
			if err != nil {
				return fmt.Errorf("build pipeline: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			report := orch.Report(ctx)

			if asJSON {
				if err := writeJSONReport(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), render.Checkup(report))
			}

			if !report.Healthy() {
				return errors.New("pipeline check failed")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "Probe deadline across all tiers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the raw report as JSON")
	return cmd
}

type tierReport struct {
	Stage   string `json:"stage"`
	Tier    string `json:"tier"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

func writeJSONReport(w io.Writer, report pipeline.StageReport) error {
	var rows []tierReport
	collect := func(stage string, tiers []pipeline.TierHealth) {
		for _, tier := range tiers {
			row := tierReport{Stage: stage, Tier: tier.Name, Healthy: tier.Healthy}
			if tier.Err != nil {
				row.Error = tier.Err.Error()
			}
			rows = append(rows, row)
		}
	}
	collect("transcription", report.Transcription)
	collect("translation", report.Translation)
	collect("synthesis", report.Synthesis)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
