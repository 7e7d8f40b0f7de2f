package cli

import (
	"github.com/spf13/cobra"

	"ratecatalog/internal/catalog"
)

type observationFlags struct {
	institution string
	accountType string
	rate        string
	apy         string
	minDeposit  string
	term        int
	features    []string
	sourceURL   string
	location    string
	notes       string
}

func (f *observationFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.institution, "institution", "", "Institution name")
	cmd.Flags().StringVar(&f.accountType, "type", "savings", "Account type: checking, savings, cd, money-market")
	cmd.Flags().StringVar(&f.rate, "rate", "", "Advertised rate in percent")
	cmd.Flags().StringVar(&f.apy, "apy", "", "Annual percentage yield (defaults to --rate)")
	cmd.Flags().StringVar(&f.minDeposit, "min-deposit", "", "Minimum opening deposit")
	cmd.Flags().IntVar(&f.term, "term", 0, "CD term in months")
	cmd.Flags().StringSliceVar(&f.features, "feature", nil, "Account feature, repeatable")
	cmd.Flags().StringVar(&f.sourceURL, "source-url", "", "Where the rate was seen")
	cmd.Flags().StringVar(&f.location, "location", "", "City or region for local offers")
	cmd.Flags().StringVar(&f.notes, "notes", "", "Free-form notes")
}

// observation builds a community observation; field validation is left to
// the normaliser so the CLI reports the same errors as every other caller.
func (f *observationFlags) observation() (catalog.Observation, error) {
	obs := catalog.Observation{
		InstitutionName: f.institution,
		AccountType:     catalog.AccountType(f.accountType),
		Features:        f.features,
		Origin:          catalog.OriginCommunity,
		SourceURL:       f.sourceURL,
		Location:        f.location,
		Notes:           f.notes,
	}
	if at, err := catalog.ParseAccountType(f.accountType); err == nil {
		obs.AccountType = at
	}

	var err error
	if obs.Rate, err = parseOptionalDecimal("rate", f.rate); err != nil {
		return obs, err
	}
	if obs.APY, err = parseOptionalDecimal("apy", f.apy); err != nil {
		return obs, err
	}
	if obs.MinDeposit, err = parseOptionalDecimal("min-deposit", f.minDeposit); err != nil {
		return obs, err
	}
	if f.term > 0 {
		obs.TermMonths = catalog.IntPtr(f.term)
	}
	return obs, nil
}

var (
	submitFlags observationFlags
	checkFlags  observationFlags
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a community rate observation",
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := submitFlags.observation()
		if err != nil {
			return err
		}
		return getApp().Submit(cmd.Context(), obs, cmd.OutOrStdout())
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show how a community observation would be trust-scored without storing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		obs, err := checkFlags.observation()
		if err != nil {
			return err
		}
		return getApp().Check(cmd.Context(), obs, cmd.OutOrStdout())
	},
}

func init() {
	submitFlags.register(submitCmd)
	checkFlags.register(checkCmd)
}
