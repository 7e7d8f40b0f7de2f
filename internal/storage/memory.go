package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ratecatalog/internal/catalog"
)

// MemoryStore is an in-process RecordStore used when no database is
// configured and by tests. All mutations hold one lock, which gives the
// same atomic increment and upsert guarantees as the SQL statements.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]catalog.Record
	order   []uuid.UUID
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]catalog.Record)}
}

// Insert stores rec as a new row.
func (m *MemoryStore) Insert(_ context.Context, rec catalog.Record) (catalog.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.ID]; exists {
		return catalog.Record{}, catalog.Persistence("insert record", fmt.Errorf("duplicate id %s", rec.ID))
	}
	m.put(rec)
	return clone(rec), nil
}

// UpsertByKey inserts rec or overwrites the sourced record with the same key.
func (m *MemoryStore) UpsertByKey(_ context.Context, rec catalog.Record, policy catalog.RefreshPolicy) (catalog.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.findByKey(rec.Key()); ok {
		updated := catalog.ApplySourced(existing, rec, policy, rec.UpdatedAt)
		if rec.LastScrapedAt != nil {
			scraped := *rec.LastScrapedAt
			updated.LastScrapedAt = &scraped
		}
		m.records[existing.ID] = clone(updated)
		return clone(updated), nil
	}

	m.put(rec)
	return clone(rec), nil
}

// FindByKey returns the sourced record for key.
func (m *MemoryStore) FindByKey(_ context.Context, key catalog.Key) (catalog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.findByKey(key)
	if !ok {
		return catalog.Record{}, catalog.ErrNotFound
	}
	return clone(rec), nil
}

// Get returns a record by id.
func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (catalog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return catalog.Record{}, fmt.Errorf("get record %s: %w", id, catalog.ErrNotFound)
	}
	return clone(rec), nil
}

// IncrementVerification adds one verification.
func (m *MemoryStore) IncrementVerification(_ context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return m.mutate(id, func(rec *catalog.Record) {
		rec.VerificationCount++
		verified := at
		rec.LastVerifiedAt = &verified
		rec.UpdatedAt = at
	})
}

// IncrementReport adds one report.
func (m *MemoryStore) IncrementReport(_ context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return m.mutate(id, func(rec *catalog.Record) {
		rec.ReportCount++
		rec.UpdatedAt = at
	})
}

// ResetCounters zeroes both counters.
func (m *MemoryStore) ResetCounters(_ context.Context, id uuid.UUID, at time.Time) (catalog.Record, error) {
	return m.mutate(id, func(rec *catalog.Record) {
		rec.VerificationCount = 0
		rec.ReportCount = 0
		rec.UpdatedAt = at
	})
}

// Delete removes a record.
func (m *MemoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("delete record %s: %w", id, catalog.ErrNotFound)
	}
	delete(m.records, id)
	m.order = slices.DeleteFunc(m.order, func(v uuid.UUID) bool { return v == id })
	return nil
}

// List returns records matching filter in the same order the SQL store uses.
func (m *MemoryStore) List(_ context.Context, filter Filter) ([]catalog.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	institution := ""
	if filter.Institution != "" {
		institution = catalog.InstitutionKey(filter.Institution)
	}

	location := strings.TrimSpace(filter.Location)

	out := make([]catalog.Record, 0)
	for _, id := range m.order {
		rec := m.records[id]
		if filter.AccountType != "" && rec.AccountType != filter.AccountType {
			continue
		}
		if len(filter.Origins) > 0 && !slices.Contains(filter.Origins, rec.SourceOrigin) {
			continue
		}
		if institution != "" && catalog.InstitutionKey(rec.InstitutionName) != institution {
			continue
		}
		if filter.MinAPY != nil && rec.APY.LessThan(*filter.MinAPY) {
			continue
		}
		if filter.MinReports > 0 && rec.ReportCount < filter.MinReports {
			continue
		}
		if filter.Scope != "" && rec.AvailabilityScope != filter.Scope {
			continue
		}
		if location != "" && (rec.AvailabilityScope == catalog.ScopeNational || !strings.EqualFold(strings.TrimSpace(rec.Location), location)) {
			continue
		}
		if filter.VisibleOnly && !catalog.Visible(rec) {
			continue
		}
		out = append(out, clone(rec))
	}

	sort.SliceStable(out, func(i, j int) bool {
		switch filter.Sort {
		case SortUpdated:
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		case SortReports:
			return out[i].ReportCount > out[j].ReportCount
		default:
			return out[i].APY.GreaterThan(out[j].APY)
		}
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AverageAPY computes the mean APY of records of accountType from origins.
func (m *MemoryStore) AverageAPY(_ context.Context, accountType catalog.AccountType, origins []catalog.Origin) (catalog.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	count := 0
	for _, rec := range m.records {
		if rec.AccountType != accountType || !slices.Contains(origins, rec.SourceOrigin) {
			continue
		}
		sum = sum.Add(rec.APY)
		count++
	}
	if count == 0 {
		return catalog.Baseline{}, nil
	}
	return catalog.Baseline{Mean: sum.Div(decimal.NewFromInt(int64(count))), Samples: count}, nil
}

func (m *MemoryStore) put(rec catalog.Record) {
	m.records[rec.ID] = clone(rec)
	m.order = append(m.order, rec.ID)
}

func (m *MemoryStore) findByKey(key catalog.Key) (catalog.Record, bool) {
	for _, id := range m.order {
		rec := m.records[id]
		if rec.SourceOrigin.Authoritative() && rec.Key() == key {
			return rec, true
		}
	}
	return catalog.Record{}, false
}

func (m *MemoryStore) mutate(id uuid.UUID, fn func(*catalog.Record)) (catalog.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return catalog.Record{}, fmt.Errorf("update record %s: %w", id, catalog.ErrNotFound)
	}
	fn(&rec)
	m.records[id] = rec
	return clone(rec), nil
}

func clone(rec catalog.Record) catalog.Record {
	rec.Features = slices.Clone(rec.Features)
	if rec.TermMonths != nil {
		rec.TermMonths = catalog.IntPtr(*rec.TermMonths)
	}
	if rec.LastVerifiedAt != nil {
		v := *rec.LastVerifiedAt
		rec.LastVerifiedAt = &v
	}
	if rec.LastScrapedAt != nil {
		v := *rec.LastScrapedAt
		rec.LastScrapedAt = &v
	}
	return rec
}

var _ RecordStore = (*MemoryStore)(nil)
