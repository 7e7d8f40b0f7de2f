package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"ratecatalog/internal/app"
	"ratecatalog/internal/catalog"
	"ratecatalog/internal/storage"
)

var (
	listType        string
	listInstitution string
	listMinAPY      string
	listSort        string
	listLimit       int

	rankType          string
	rankMinRate       string
	rankMaxMinDeposit string
	rankFeatures      []string
	rankLocation      string
	rankCandidates    int

	alertsType   string
	alertsTarget string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the public catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseOptionalType(listType)
		if err != nil {
			return err
		}
		minAPY, err := parseOptionalDecimal("min-apy", listMinAPY)
		if err != nil {
			return err
		}
		sort, err := parseSort(listSort)
		if err != nil {
			return err
		}
		if listLimit < 0 {
			return errors.New("--limit cannot be negative")
		}

		return getApp().List(cmd.Context(), app.ListOptions{
			Filter: storage.Filter{
				AccountType: at,
				Institution: listInstitution,
				MinAPY:      minAPY,
				Sort:        sort,
				Limit:       listLimit,
			},
			Out: cmd.OutOrStdout(),
		})
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Recommend the best accounts for your preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := catalog.ParseAccountType(rankType)
		if err != nil {
			return err
		}
		minRate, err := parseOptionalDecimal("min-rate", rankMinRate)
		if err != nil {
			return err
		}
		maxDeposit, err := parseOptionalDecimal("max-min-deposit", rankMaxMinDeposit)
		if err != nil {
			return err
		}

		return getApp().Rank(cmd.Context(), app.RankOptions{
			AccountType: at,
			Preferences: catalog.Preferences{
				MinRate:           minRate,
				MaxMinDeposit:     maxDeposit,
				PreferredFeatures: rankFeatures,
				Location:          rankLocation,
			},
			CandidateLimit: rankCandidates,
			Out:            cmd.OutOrStdout(),
		})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List visible accounts at or above a target APY",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := catalog.ParseAccountType(alertsType)
		if err != nil {
			return err
		}
		target, err := decimal.NewFromString(alertsTarget)
		if err != nil {
			return errors.New("--target must be a number such as 4.5")
		}

		return getApp().Alerts(cmd.Context(), app.AlertsOptions{
			AccountType: at,
			TargetAPY:   target,
			Out:         cmd.OutOrStdout(),
		})
	},
}

func parseSort(v string) (storage.SortOrder, error) {
	switch storage.SortOrder(v) {
	case "", storage.SortAPY:
		return storage.SortAPY, nil
	case storage.SortUpdated, storage.SortReports:
		return storage.SortOrder(v), nil
	default:
		return "", errors.New("--sort must be apy, updated or reports")
	}
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "Account type filter")
	listCmd.Flags().StringVar(&listInstitution, "institution", "", "Institution name filter")
	listCmd.Flags().StringVar(&listMinAPY, "min-apy", "", "Minimum APY")
	listCmd.Flags().StringVar(&listSort, "sort", "apy", "Sort order: apy, updated, reports")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum records to display (0 for all)")

	rankCmd.Flags().StringVar(&rankType, "type", "savings", "Account type")
	rankCmd.Flags().StringVar(&rankMinRate, "min-rate", "", "Minimum APY")
	rankCmd.Flags().StringVar(&rankMaxMinDeposit, "max-min-deposit", "", "Largest opening deposit you can make")
	rankCmd.Flags().StringSliceVar(&rankFeatures, "feature", nil, "Preferred feature, repeatable")
	rankCmd.Flags().StringVar(&rankLocation, "location", "", "Your city or region for local offers")
	rankCmd.Flags().IntVar(&rankCandidates, "candidates", 0, "Catalog records considered (defaults to config)")

	alertsCmd.Flags().StringVar(&alertsType, "type", "savings", "Account type")
	alertsCmd.Flags().StringVar(&alertsTarget, "target", "", "Target APY")
}
