package cli

import (
	"github.com/spf13/cobra"

	"ratecatalog/internal/app"
)

var (
	exportType       string
	exportAll        bool
	exportPNGPath    string
	exportCSVPath    string
	exportMaxRecords int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as CSV and/or a PNG APY chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseOptionalType(exportType)
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			AccountType:   at,
			IncludeHidden: exportAll,
			PNGPath:       exportPNGPath,
			CSVPath:       exportCSVPath,
			MaxRecords:    exportMaxRecords,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportType, "type", "", "Account type filter")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Include records hidden by reports")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRecords, "max-records", 0, "Maximum records to export (defaults to config)")
}
