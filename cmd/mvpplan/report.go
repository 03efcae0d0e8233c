package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the strategic plan report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openPlanner(cmd.Context())
			if p != nil {
				defer func() { _ = p.Close() }()
			}
			if err != nil {
				return err
			}
			report := p.engine.BuildReport()
			if out == "" {
				_, err := io.WriteString(a.stdout, report)
				return err
			}
			if err := os.WriteFile(out, []byte(report), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			a.logger.Info("report written", zap.String("path", out))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the report to this file instead of stdout")
	return cmd
}
