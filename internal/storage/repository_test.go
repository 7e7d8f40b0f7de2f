package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratecatalog/internal/catalog"
)

func TestBuildListQueryDefaults(t *testing.T) {
	query, args := buildListQuery(Filter{})

	assert.Empty(t, args)
	assert.NotContains(t, query, "WHERE")
	assert.True(t, strings.HasSuffix(query, "ORDER BY apy DESC, created_at, id"))
}

func TestBuildListQueryAllConstraints(t *testing.T) {
	minAPY := decimal.RequireFromString("4.25")
	query, args := buildListQuery(Filter{
		AccountType: catalog.AccountCD,
		Origins:     SourcedOrigins,
		Institution: "  Ally   BANK ",
		MinAPY:      &minAPY,
		MinReports:  3,
		VisibleOnly: true,
		Sort:        SortReports,
		Limit:       10,
	})

	require.Len(t, args, 6)
	assert.Equal(t, "cd", args[0])
	assert.Equal(t, []string{"scraped", "api"}, args[1])
	assert.Equal(t, "ally bank", args[2])
	assert.Equal(t, "4.25", args[3])
	assert.Equal(t, 3, args[4])
	assert.Equal(t, 10, args[5])

	assert.Contains(t, query, "account_type = $1")
	assert.Contains(t, query, "source_origin = ANY($2)")
	assert.Contains(t, query, "institution_key = $3")
	assert.Contains(t, query, "apy >= $4::numeric")
	assert.Contains(t, query, "report_count >= $5")
	assert.Contains(t, query, "report_count <= verification_count")
	assert.Contains(t, query, "ORDER BY report_count DESC")
	assert.True(t, strings.HasSuffix(query, "LIMIT $6"))
}

func TestBuildListQueryScopeAndLocation(t *testing.T) {
	query, args := buildListQuery(Filter{Scope: catalog.ScopeNational, Location: "  Austin, TX "})

	require.Len(t, args, 2)
	assert.Equal(t, "national", args[0])
	assert.Equal(t, "Austin, TX", args[1])
	assert.Contains(t, query, "availability_scope = $1")
	assert.Contains(t, query, "availability_scope <> 'national' AND lower(location) = lower($2)")
}

func TestBuildListQueryUpdatedOrder(t *testing.T) {
	query, _ := buildListQuery(Filter{Sort: SortUpdated})
	assert.Contains(t, query, "ORDER BY updated_at DESC, id")
}

func TestRecordArgsShape(t *testing.T) {
	rec := catalog.Record{
		ID:              uuid.New(),
		InstitutionName: "Ally Bank",
		AccountType:     catalog.AccountSavings,
		Rate:            decimal.RequireFromString("4.1"),
		APY:             decimal.RequireFromString("4.2"),
		SourceOrigin:    catalog.OriginScraped,
	}

	args := recordArgs(rec)
	require.Len(t, args, 20)
	assert.Equal(t, "ally bank", args[2])
	assert.Nil(t, args[7], "term must be NULL for non-cd accounts")
	assert.Equal(t, []string{}, args[8])

	rec.TermMonths = catalog.IntPtr(12)
	args = recordArgs(rec)
	assert.Equal(t, 12, args[7])
}

func TestNotFoundMapsNoRows(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), catalog.ErrNotFound)

	other := errors.New("boom")
	assert.Equal(t, other, notFound(other))
}

func TestStoreWithoutPool(t *testing.T) {
	var s *Store
	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = s.Migrate(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}
