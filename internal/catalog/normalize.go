package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Normalize validates a raw observation and converts it into a candidate record.
// The candidate has no identity and zero counters; merging decides both.
func Normalize(obs Observation, now time.Time) (Record, error) {
	if err := validateObservation(obs); err != nil {
		return Record{}, err
	}

	apy := *obs.Rate
	if obs.APY != nil {
		apy = *obs.APY
	}

	minDeposit := decimal.Zero
	if obs.MinDeposit != nil {
		minDeposit = *obs.MinDeposit
	}

	var term *int
	if obs.TermMonths != nil {
		term = IntPtr(*obs.TermMonths)
	}

	location := strings.TrimSpace(obs.Location)
	scope := ScopeNational
	if obs.Origin == OriginCommunity && location != "" {
		scope = ScopeRegional
	}

	return Record{
		InstitutionName:   CleanInstitutionName(obs.InstitutionName),
		AccountType:       obs.AccountType,
		Rate:              *obs.Rate,
		APY:               apy,
		MinDeposit:        minDeposit,
		TermMonths:        term,
		Features:          NormalizeFeatures(obs.Features),
		SourceOrigin:      obs.Origin,
		SourceURL:         strings.TrimSpace(obs.SourceURL),
		AvailabilityScope: scope,
		Location:          location,
		Notes:             strings.TrimSpace(obs.Notes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func validateObservation(obs Observation) error {
	if err := getValidator().Struct(obs); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fe.Field(), Reason: describeTag(fe)}
		}
		return &ValidationError{Field: "observation", Reason: err.Error()}
	}

	if CleanInstitutionName(obs.InstitutionName) == "" {
		return &ValidationError{Field: "institutionName", Reason: "is required"}
	}
	if obs.Rate == nil {
		return &ValidationError{Field: "rate", Reason: "is required"}
	}
	if err := checkAmount("rate", obs.Rate, RatePlaces, MaxRatePercent); err != nil {
		return err
	}
	if err := checkAmount("apy", obs.APY, RatePlaces, MaxRatePercent); err != nil {
		return err
	}
	if err := checkAmount("minDeposit", obs.MinDeposit, DepositPlaces, MaxMinDeposit); err != nil {
		return err
	}

	switch {
	case obs.AccountType == AccountCD && obs.TermMonths == nil:
		return &ValidationError{Field: "term", Reason: "is required for cd accounts"}
	case obs.AccountType != AccountCD && obs.TermMonths != nil:
		return &ValidationError{Field: "term", Reason: "is only allowed for cd accounts"}
	}
	return nil
}

// checkAmount keeps numeric fields within what the rate_records columns store
// exactly; anything finer or larger would be rounded or rejected on write.
func checkAmount(field string, d *decimal.Decimal, places int32, upper decimal.Decimal) error {
	if d == nil {
		return nil
	}
	switch {
	case d.IsNegative():
		return &ValidationError{Field: field, Reason: "must not be negative"}
	case d.GreaterThan(upper):
		return &ValidationError{Field: field, Reason: "must be at most " + upper.String()}
	case !d.Round(places).Equal(*d):
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must have at most %d decimal places", places)}
	}
	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// NormalizeFeatures lowercases, trims, deduplicates and sorts feature labels.
func NormalizeFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		f = strings.ToLower(strings.Join(strings.Fields(f), " "))
		if f != "" {
			out = append(out, f)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
