package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"ratecatalog/internal/app"
	"ratecatalog/internal/catalog"
	"ratecatalog/internal/fetcher"
)

var (
	sweepTargets string

	refreshInstitution string
	refreshType        string
	refreshURL         string
	refreshSelector    string
	refreshTerm        int
	refreshPolicy      string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Refresh every configured institution once",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sweep(cmd.Context(), app.SweepOptions{
			TargetsFile: sweepTargets,
			Out:         cmd.OutOrStdout(),
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh one institution, keeping community verifications by default",
	RunE: func(cmd *cobra.Command, args []string) error {
		if refreshInstitution == "" {
			return errors.New("--institution must be provided")
		}
		at, err := catalog.ParseAccountType(refreshType)
		if err != nil {
			return err
		}

		return getApp().Refresh(cmd.Context(), app.RefreshOptions{
			Target: fetcher.Target{
				Institution:  catalog.CleanInstitutionName(refreshInstitution),
				AccountType:  at,
				URL:          refreshURL,
				RateSelector: refreshSelector,
				TermMonths:   refreshTerm,
			},
			TargetsFile: sweepTargets,
			Policy:      refreshPolicy,
			Out:         cmd.OutOrStdout(),
		})
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepTargets, "targets", "", "Targets YAML file (defaults to config)")

	refreshCmd.Flags().StringVar(&refreshInstitution, "institution", "", "Institution name")
	refreshCmd.Flags().StringVar(&refreshType, "type", "savings", "Account type: checking, savings, cd, money-market")
	refreshCmd.Flags().StringVar(&refreshURL, "url", "", "Rate page to scrape; AI search is used when empty")
	refreshCmd.Flags().StringVar(&refreshSelector, "rate-selector", "", "CSS selector of the rate on --url")
	refreshCmd.Flags().IntVar(&refreshTerm, "term", 0, "CD term in months")
	refreshCmd.Flags().StringVar(&refreshPolicy, "policy", "preserve-trust", "preserve-trust or reset-trust")
	refreshCmd.Flags().StringVar(&sweepTargets, "targets", "", "Targets YAML file used to look up selectors")
}
