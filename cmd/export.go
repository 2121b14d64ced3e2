package main

import (
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/umbc-cmsc636/rent-analytics/internal/census"
	"github.com/umbc-cmsc636/rent-analytics/internal/dataset"
	"github.com/umbc-cmsc636/rent-analytics/internal/export"
	"github.com/umbc-cmsc636/rent-analytics/internal/region"
)

var (
	exportFormat string
	exportOut    string
	exportStates []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the enriched county table as CSV, JSON or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		bundle, err := loadBundle(ctx, cfg, newOpener(cfg))
		if err != nil {
			return err
		}

		var n int
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "export: create %s", exportOut)
			}
			n, err = writeExportFile(f, bundle, format, exportStates)
			if err != nil {
				return eris.Wrapf(err, "export: %s", exportOut)
			}
		} else {
			n, err = writeExport(cmd.OutOrStdout(), bundle, format, exportStates)
			if err != nil {
				return err
			}
		}
		zap.L().Info("export complete",
			zap.String("format", string(format)),
			zap.String("out", exportOut),
			zap.Int("rows", n),
		)
		return nil
	},
}

// writeExport writes the county rows of the given states, or every county
// when states is empty. It returns the number of rows written.
func writeExport(w io.Writer, b *dataset.Bundle, format export.Format, states []string) (int, error) {
	rows := b.Counties
	if len(states) > 0 {
		res, err := region.Filter(b.RegionInput(region.OutlineUnselected), states)
		if err != nil {
			return 0, err
		}
		rows = res.Counties
	}
	if err := export.Write(w, format, rows, census.DefaultCountyColumns()); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// writeExportFile writes the export to f and closes it. A failed close is
// reported so a truncated file never passes as a complete export.
func writeExportFile(f io.WriteCloser, b *dataset.Bundle, format export.Format, states []string) (int, error) {
	n, err := writeExport(f, b, format, states)
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, eris.Wrap(err, "export: close output")
	}
	return n, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "-", "output file (- for stdout)")
	exportCmd.Flags().StringSliceVar(&exportStates, "states", nil, "state names to include (default all)")
	rootCmd.AddCommand(exportCmd)
}
