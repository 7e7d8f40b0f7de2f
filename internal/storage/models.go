package storage

import (
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
)

// SortOrder selects the ordering of List results.
type SortOrder string

const (
	// SortAPY orders by effective yield, highest first.
	SortAPY SortOrder = "apy"
	// SortUpdated orders by last update, newest first.
	SortUpdated SortOrder = "updated"
	// SortReports orders by report count, highest first (admin triage).
	SortReports SortOrder = "reports"
)

// Filter narrows catalog queries. Zero values mean "no constraint".
type Filter struct {
	AccountType catalog.AccountType
	Origins     []catalog.Origin
	Institution string
	MinAPY      *decimal.Decimal
	MinReports  int
	// Scope keeps only records with this availability scope.
	Scope catalog.Scope
	// Location keeps only non-national records offered at this location.
	Location string
	// VisibleOnly applies the report/verification visibility rule at read time.
	VisibleOnly bool
	Sort        SortOrder
	Limit       int
}

// SourcedOrigins are the authoritative origins that feed the trust baseline.
var SourcedOrigins = []catalog.Origin{catalog.OriginScraped, catalog.OriginAPI}
