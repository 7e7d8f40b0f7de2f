package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const recordColumns = `id,
        institution_name,
        account_type,
        rate::text,
        apy::text,
        min_deposit::text,
        term_months,
        features,
        source_origin,
        source_url,
        availability_scope,
        location,
        notes,
        verification_count,
        report_count,
        last_verified_at,
        last_scraped_at,
        created_at,
        updated_at`

const (
	insertRecordSQL = `INSERT INTO rate_records (
        id,
        institution_name,
        institution_key,
        account_type,
        rate,
        apy,
        min_deposit,
        term_months,
        features,
        source_origin,
        source_url,
        availability_scope,
        location,
        notes,
        verification_count,
        report_count,
        last_verified_at,
        last_scraped_at,
        created_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
    )`

	insertCommunityRecordSQL = insertRecordSQL + `
    RETURNING ` + recordColumns + `;`

	upsertSourcedRecordSQL = insertRecordSQL + `
    ON CONFLICT (institution_key, account_type) WHERE source_origin <> 'community' DO UPDATE
    SET
        rate               = EXCLUDED.rate,
        apy                = EXCLUDED.apy,
        min_deposit        = EXCLUDED.min_deposit,
        term_months        = EXCLUDED.term_months,
        features           = EXCLUDED.features,
        source_url         = EXCLUDED.source_url,
        source_origin      = EXCLUDED.source_origin,
        last_scraped_at    = EXCLUDED.last_scraped_at,
        updated_at         = EXCLUDED.updated_at,
        verification_count = CASE WHEN $21::boolean THEN 0 ELSE rate_records.verification_count END,
        report_count       = CASE WHEN $21::boolean THEN 0 ELSE rate_records.report_count END
    RETURNING ` + recordColumns + `;`

	findByKeySQL = `SELECT ` + recordColumns + `
    FROM rate_records
    WHERE institution_key = $1
      AND account_type = $2
      AND source_origin <> 'community';`

	getRecordSQL = `SELECT ` + recordColumns + `
    FROM rate_records
    WHERE id = $1;`

	incrementVerificationSQL = `UPDATE rate_records
    SET verification_count = verification_count + 1,
        last_verified_at   = $2,
        updated_at         = $2
    WHERE id = $1
    RETURNING ` + recordColumns + `;`

	incrementReportSQL = `UPDATE rate_records
    SET report_count = report_count + 1,
        updated_at   = $2
    WHERE id = $1
    RETURNING ` + recordColumns + `;`

	resetCountersSQL = `UPDATE rate_records
    SET verification_count = 0,
        report_count       = 0,
        updated_at         = $2
    WHERE id = $1
    RETURNING ` + recordColumns + `;`

	deleteRecordSQL = `DELETE FROM rate_records WHERE id = $1;`

	averageAPYSQL = `SELECT COALESCE(AVG(apy), 0)::text, COUNT(apy)
    FROM rate_records
    WHERE account_type = $1
      AND source_origin = ANY($2);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// RecordStore is the persistence collaborator of the catalog.
type RecordStore interface {
	Insert(ctx context.Context, rec catalog.Record) (catalog.Record, error)
	UpsertByKey(ctx context.Context, rec catalog.Record, policy catalog.RefreshPolicy) (catalog.Record, error)
	FindByKey(ctx context.Context, key catalog.Key) (catalog.Record, error)
	Get(ctx context.Context, id uuid.UUID) (catalog.Record, error)
	IncrementVerification(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error)
	IncrementReport(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error)
	ResetCounters(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter Filter) ([]catalog.Record, error)
	AverageAPY(ctx context.Context, accountType catalog.AccountType, origins []catalog.Origin) (catalog.Baseline, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store is the PostgreSQL RecordStore.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the session lock also goes away with the connection
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

func recordArgs(rec catalog.Record) []any {
	var term any
	if rec.TermMonths != nil {
		term = *rec.TermMonths
	}
	features := rec.Features
	if features == nil {
		features = []string{}
	}
	return []any{
		rec.ID,
		rec.InstitutionName,
		catalog.InstitutionKey(rec.InstitutionName),
		string(rec.AccountType),
		rec.Rate.String(),
		rec.APY.String(),
		rec.MinDeposit.String(),
		term,
		features,
		string(rec.SourceOrigin),
		rec.SourceURL,
		string(rec.AvailabilityScope),
		rec.Location,
		rec.Notes,
		rec.VerificationCount,
		rec.ReportCount,
		rec.LastVerifiedAt,
		rec.LastScrapedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	}
}

// Insert stores a new record as its own row.
func (s *Store) Insert(ctx context.Context, rec catalog.Record) (catalog.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return catalog.Record{}, err
	}
	out, err := scanRecord(pool.QueryRow(ctx, insertCommunityRecordSQL, recordArgs(rec)...))
	if err != nil {
		return catalog.Record{}, catalog.Persistence("insert record", err)
	}
	return out, nil
}

// UpsertByKey atomically inserts or overwrites the sourced record for rec's key.
func (s *Store) UpsertByKey(ctx context.Context, rec catalog.Record, policy catalog.RefreshPolicy) (catalog.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return catalog.Record{}, err
	}
	args := append(recordArgs(rec), policy == catalog.ResetTrust)
	out, err := scanRecord(pool.QueryRow(ctx, upsertSourcedRecordSQL, args...))
	if err != nil {
		return catalog.Record{}, catalog.Persistence("upsert record", err)
	}
	return out, nil
}

// FindByKey returns the sourced record for key or catalog.ErrNotFound.
func (s *Store) FindByKey(ctx context.Context, key catalog.Key) (catalog.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return catalog.Record{}, err
	}
	rec, err := scanRecord(pool.QueryRow(ctx, findByKeySQL, key.Institution, string(key.AccountType)))
	if err != nil {
		return catalog.Record{}, catalog.Persistence("find record by key", notFound(err))
	}
	return rec, nil
}

// Get returns a record by id or catalog.ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (catalog.Record, error) {
	return s.queryOne(ctx, "get record", getRecordSQL, id)
}

// IncrementVerification adds one verification in a single statement.
func (s *Store) IncrementVerification(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return s.queryOne(ctx, "increment verification", incrementVerificationSQL, id, at)
}

// IncrementReport adds one report in a single statement.
func (s *Store) IncrementReport(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return s.queryOne(ctx, "increment report", incrementReportSQL, id, at)
}

// ResetCounters zeroes both ledger counters.
func (s *Store) ResetCounters(ctx context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return s.queryOne(ctx, "reset counters", resetCountersSQL, id, at)
}

// Delete removes a record permanently.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	cmdTag, execErr := pool.Exec(ctx, deleteRecordSQL, id)
	if execErr != nil {
		return catalog.Persistence("delete record", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("delete record %s: %w", id, catalog.ErrNotFound)
	}
	return nil
}

// List returns records matching filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]catalog.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args := buildListQuery(filter)
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, catalog.Persistence("list records", queryErr)
	}
	defer rows.Close()

	records := make([]catalog.Record, 0)
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, catalog.Persistence("scan record", scanErr)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, catalog.Persistence("list records", rows.Err())
	}
	return records, nil
}

// AverageAPY computes the live mean APY for an account type across origins.
func (s *Store) AverageAPY(ctx context.Context, accountType catalog.AccountType, origins []catalog.Origin) (catalog.Baseline, error) {
	pool, err := s.getPool()
	if err != nil {
		return catalog.Baseline{}, err
	}

	names := make([]string, 0, len(origins))
	for _, o := range origins {
		names = append(names, string(o))
	}

	var meanStr string
	var count int64
	if scanErr := pool.QueryRow(ctx, averageAPYSQL, string(accountType), names).Scan(&meanStr, &count); scanErr != nil {
		return catalog.Baseline{}, catalog.Persistence("average apy", scanErr)
	}

	mean, convErr := decimal.NewFromString(meanStr)
	if convErr != nil {
		return catalog.Baseline{}, fmt.Errorf("parse average apy: %w", convErr)
	}
	return catalog.Baseline{Mean: mean, Samples: int(count)}, nil
}

func (s *Store) queryOne(ctx context.Context, op, query string, args ...any) (catalog.Record, error) {
	pool, err := s.getPool()
	if err != nil {
		return catalog.Record{}, err
	}
	rec, err := scanRecord(pool.QueryRow(ctx, query, args...))
	if err != nil {
		return catalog.Record{}, catalog.Persistence(op, notFound(err))
	}
	return rec, nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.ErrNotFound
	}
	return err
}

func buildListQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.AccountType != "" {
		where = append(where, "account_type = "+arg(string(f.AccountType)))
	}
	if len(f.Origins) > 0 {
		names := make([]string, 0, len(f.Origins))
		for _, o := range f.Origins {
			names = append(names, string(o))
		}
		where = append(where, "source_origin = ANY("+arg(names)+")")
	}
	if f.Institution != "" {
		where = append(where, "institution_key = "+arg(catalog.InstitutionKey(f.Institution)))
	}
	if f.MinAPY != nil {
		where = append(where, "apy >= "+arg(f.MinAPY.String())+"::numeric")
	}
	if f.MinReports > 0 {
		where = append(where, "report_count >= "+arg(f.MinReports))
	}
	if f.Scope != "" {
		where = append(where, "availability_scope = "+arg(string(f.Scope)))
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		where = append(where, "availability_scope <> 'national' AND lower(location) = lower("+arg(loc)+")")
	}
	if f.VisibleOnly {
		where = append(where, "report_count <= verification_count")
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(recordColumns)
	b.WriteString("\n    FROM rate_records")
	if len(where) > 0 {
		b.WriteString("\n    WHERE ")
		b.WriteString(strings.Join(where, "\n      AND "))
	}

	switch f.Sort {
	case SortUpdated:
		b.WriteString("\n    ORDER BY updated_at DESC, id")
	case SortReports:
		b.WriteString("\n    ORDER BY report_count DESC, created_at, id")
	default:
		b.WriteString("\n    ORDER BY apy DESC, created_at, id")
	}

	if f.Limit > 0 {
		b.WriteString("\n    LIMIT " + arg(f.Limit))
	}
	return b.String(), args
}

func scanRecord(row pgx.Row) (catalog.Record, error) {
	var (
		rec          catalog.Record
		accountType  string
		rateStr      string
		apyStr       string
		depositStr   string
		term         sql.NullInt64
		origin       string
		scope        string
		lastVerified sql.NullTime
		lastScraped  sql.NullTime
	)

	if err := row.Scan(
		&rec.ID,
		&rec.InstitutionName,
		&accountType,
		&rateStr,
		&apyStr,
		&depositStr,
		&term,
		&rec.Features,
		&origin,
		&rec.SourceURL,
		&scope,
		&rec.Location,
		&rec.Notes,
		&rec.VerificationCount,
		&rec.ReportCount,
		&lastVerified,
		&lastScraped,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return catalog.Record{}, err
	}

	var err error
	if rec.Rate, err = decimal.NewFromString(rateStr); err != nil {
		return catalog.Record{}, fmt.Errorf("parse rate: %w", err)
	}
	if rec.APY, err = decimal.NewFromString(apyStr); err != nil {
		return catalog.Record{}, fmt.Errorf("parse apy: %w", err)
	}
	if rec.MinDeposit, err = decimal.NewFromString(depositStr); err != nil {
		return catalog.Record{}, fmt.Errorf("parse min deposit: %w", err)
	}

	rec.AccountType = catalog.AccountType(accountType)
	rec.SourceOrigin = catalog.Origin(origin)
	rec.AvailabilityScope = catalog.Scope(scope)

	if term.Valid {
		rec.TermMonths = catalog.IntPtr(int(term.Int64))
	}
	if lastVerified.Valid {
		v := lastVerified.Time
		rec.LastVerifiedAt = &v
	}
	if lastScraped.Valid {
		v := lastScraped.Time
		rec.LastScrapedAt = &v
	}

	return rec, nil
}

var (
	_ RecordStore    = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
