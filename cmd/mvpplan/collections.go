package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mvpplanner/internal/source"
	"mvpplanner/pkg/domain"
)

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <collection>",
		Short: "Print one source collection as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := domain.ParseCollectionName(args[0])
			if err != nil {
				return err
			}
			handle, err := source.Open(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = handle.Close() }()
			records, err := handle.Provider.Fetch(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", name, err)
			}
			if records == nil {
				records = []domain.Record{}
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		},
	}
}

func newMirrorCmd(a *app) *cobra.Command {
	var (
		to     string
		target string
	)
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy every collection from the configured source into a database or workbook",
		Long: "Copy every collection from the configured source into a database or workbook.\n\n" +
			"SQLite and PostgreSQL targets are written in a single transaction. A workbook target\n" +
			"is rewritten one sheet at a time, so a failure part way through leaves a mix of new\n" +
			"and previous sheets.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			driver := source.Driver(to)
			if target == "" {
				switch driver {
				case source.DriverSQLite:
					target = a.cfg.Source.SQLitePath
				case source.DriverPostgres:
					target = a.cfg.Source.PostgresDSN
				case source.DriverWorkbook:
					target = a.cfg.Source.WorkbookPath
				}
			}
			if target == "" {
				return fmt.Errorf("mirror: --target required for %s", to)
			}
			src, err := source.Open(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()
			dst, closeDst, err := source.OpenWriter(cmd.Context(), driver, target)
			if err != nil {
				return err
			}
			defer func() { _ = closeDst() }()

			counts, err := source.Mirror(cmd.Context(), src.Provider, dst)
			if err != nil {
				return err
			}
			total := 0
			for _, name := range domain.Collections() {
				total += counts[name]
				_, _ = fmt.Fprintf(a.stdout, "%-12s %d\n", name, counts[name])
			}
			a.logger.Info("mirror complete", zap.String("to", to), zap.Int("records", total))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", string(source.DriverSQLite), "destination driver: sqlite, postgres or workbook")
	cmd.Flags().StringVar(&target, "target", "", "destination path or DSN (defaults to the config value for the driver)")
	return cmd
}
