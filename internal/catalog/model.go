package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates the deposit products tracked by the catalog.
type AccountType string

const (
	AccountChecking    AccountType = "checking"
	AccountSavings     AccountType = "savings"
	AccountCD          AccountType = "cd"
	AccountMoneyMarket AccountType = "money-market"
)

// AccountTypes lists every known account type in display order.
var AccountTypes = []AccountType{AccountSavings, AccountMoneyMarket, AccountCD, AccountChecking}

// Valid reports whether the account type is one of the known values.
func (a AccountType) Valid() bool {
	switch a {
	case AccountChecking, AccountSavings, AccountCD, AccountMoneyMarket:
		return true
	default:
		return false
	}
}

// ParseAccountType converts user input into an AccountType.
func ParseAccountType(v string) (AccountType, error) {
	at := AccountType(strings.ToLower(strings.TrimSpace(v)))
	if at == "moneymarket" || at == "money_market" {
		at = AccountMoneyMarket
	}
	if !at.Valid() {
		return "", &ValidationError{Field: "accountType", Reason: fmt.Sprintf("unknown account type %q", v)}
	}
	return at, nil
}

// Origin tags where an observation came from.
type Origin string

const (
	OriginCommunity Origin = "community"
	OriginScraped   Origin = "scraped"
	OriginAPI       Origin = "api"
)

// Valid reports whether the origin is known.
func (o Origin) Valid() bool {
	return o == OriginCommunity || o == OriginScraped || o == OriginAPI
}

// Authoritative reports whether the origin converges to a single record per key.
func (o Origin) Authoritative() bool {
	return o == OriginScraped || o == OriginAPI
}

// Scope describes where an account is offered.
type Scope string

const (
	ScopeNational Scope = "national"
	ScopeRegional Scope = "regional"
	ScopeLocal    Scope = "local"
)

// Bounds on numeric observation fields, matching the precision of the
// rate_records columns.
const (
	RatePlaces    int32 = 4
	DepositPlaces int32 = 2
)

var (
	MaxRatePercent = decimal.NewFromInt(1000)
	MaxMinDeposit  = decimal.RequireFromString("999999999999.99")
)

// Key is the natural merge key of sourced records.
type Key struct {
	Institution string
	AccountType AccountType
}

// NewKey builds a merge key, folding case and whitespace in the institution name.
func NewKey(institution string, accountType AccountType) Key {
	return Key{Institution: InstitutionKey(institution), AccountType: accountType}
}

// InstitutionKey returns the case-folded form of an institution name used for matching.
func InstitutionKey(name string) string {
	return strings.ToLower(CleanInstitutionName(name))
}

// CleanInstitutionName collapses inner whitespace and trims the name.
func CleanInstitutionName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Record is a persisted catalog entry.
type Record struct {
	ID                uuid.UUID
	InstitutionName   string
	AccountType       AccountType
	Rate              decimal.Decimal
	APY               decimal.Decimal
	MinDeposit        decimal.Decimal
	TermMonths        *int
	Features          []string
	SourceOrigin      Origin
	SourceURL         string
	AvailabilityScope Scope
	Location          string
	Notes             string
	VerificationCount int
	ReportCount       int
	LastVerifiedAt    *time.Time
	LastScrapedAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Key returns the record's natural merge key.
func (r Record) Key() Key {
	return NewKey(r.InstitutionName, r.AccountType)
}

// Counts returns the ledger counters of the record.
func (r Record) Counts() Counts {
	return Counts{Verifications: r.VerificationCount, Reports: r.ReportCount}
}

// Counts is the verification/report pair returned by ledger operations.
type Counts struct {
	Verifications int `json:"verificationCount"`
	Reports       int `json:"reportCount"`
}

// Observation is a raw rate data point that has not been merged yet.
type Observation struct {
	InstitutionName string           `json:"institutionName" validate:"required,max=200"`
	AccountType     AccountType      `json:"accountType" validate:"required,oneof=checking savings cd money-market"`
	Rate            *decimal.Decimal `json:"rate" validate:"-"`
	APY             *decimal.Decimal `json:"apy,omitempty" validate:"-"`
	MinDeposit      *decimal.Decimal `json:"minDeposit,omitempty" validate:"-"`
	TermMonths      *int             `json:"term,omitempty" validate:"omitempty,gte=1"`
	Features        []string         `json:"features,omitempty" validate:"omitempty,max=20,dive,max=40"`
	Origin          Origin           `json:"origin" validate:"required,oneof=community scraped api"`
	SourceURL       string           `json:"sourceUrl,omitempty" validate:"omitempty,url"`
	Location        string           `json:"location,omitempty" validate:"max=120"`
	Notes           string           `json:"notes,omitempty" validate:"max=1000"`
}

// IntPtr is a small helper for optional integer fields.
func IntPtr(v int) *int {
	return &v
}

// DecimalPtr is a small helper for optional decimal fields.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
