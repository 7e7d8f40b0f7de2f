package cli

import (
	"github.com/spf13/cobra"
)

var reportReason string

// recordIDNote is appended to the help of commands that take a record id.
const recordIDNote = `Record ids only resolve against a configured database (database.dsn).
Without one every invocation starts from an empty in-memory catalog, so ids
printed by an earlier submit are unknown and the command fails with not found.`

var verifyCmd = &cobra.Command{
	Use:   "verify <record-id>",
	Short: "Confirm a catalog record is accurate",
	Long:  "Confirm a catalog record is accurate.\n\n" + recordIDNote,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().Verify(cmd.Context(), id, cmd.OutOrStdout())
	},
}

var reportCmd = &cobra.Command{
	Use:   "report <record-id>",
	Short: "Dispute a catalog record",
	Long:  "Dispute a catalog record. The reason is logged and sent to moderators.\n\n" + recordIDNote,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return getApp().Report(cmd.Context(), id, reportReason, cmd.OutOrStdout())
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportReason, "reason", "", "Why the record is wrong (sent to moderators)")
}
