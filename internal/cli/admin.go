package cli

import (
	"github.com/spf13/cobra"

	"ratecatalog/internal/app"
	"ratecatalog/internal/storage"
)

var (
	adminType  string
	adminLimit int
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Moderation tools",
}

var adminOverviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Show every record, including hidden ones, and the high-reports bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseOptionalType(adminType)
		if err != nil {
			return err
		}
		return getApp().Admin(cmd.Context(), app.AdminOptions{
			Filter: storage.Filter{AccountType: at, Sort: storage.SortUpdated, Limit: adminLimit},
			Out:    cmd.OutOrStdout(),
		})
	},
}

var adminResetCmd = &cobra.Command{
	Use:   "reset <record-id>",
	Short: "Zero the verification and report counters of a record",
	Long:  "Zero the verification and report counters of a record.\n\n" + recordIDNote,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().ResetCounters(cmd.Context(), id, cmd.OutOrStdout())
	},
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Delete a record permanently",
	Long:  "Delete a record permanently.\n\n" + recordIDNote,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().Delete(cmd.Context(), id, cmd.OutOrStdout())
	},
}

func init() {
	adminOverviewCmd.Flags().StringVar(&adminType, "type", "", "Account type filter")
	adminOverviewCmd.Flags().IntVar(&adminLimit, "limit", 100, "Maximum records to display (0 for all)")

	adminCmd.AddCommand(adminOverviewCmd, adminResetCmd, adminDeleteCmd)
}
