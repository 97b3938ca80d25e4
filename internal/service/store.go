package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/kumon-analytics/pkg/errors"

	"github.com/noah-isme/kumon-analytics/internal/models"
)

// TabularStore is the named-table, header-first store the pipeline reads
// and writes. ReadTable returns a NotFoundError for absent tables;
// ClearAndWrite and AppendRows create absent tables.
type TabularStore interface {
	ReadTable(ctx context.Context, name string) (models.Table, error)
	ClearAndWrite(ctx context.Context, name string, table models.Table) error
	AppendRows(ctx context.Context, name string, table models.Table) error
	CreateTable(ctx context.Context, name string, header []string) error
}

// InstrumentedStore records latency and failures of every store call.
type InstrumentedStore struct {
	next    TabularStore
	metrics *MetricsService
	logger  *zap.Logger
}

// NewInstrumentedStore wraps next with metrics and failure logging.
func NewInstrumentedStore(next TabularStore, metrics *MetricsService, logger *zap.Logger) *InstrumentedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedStore{next: next, metrics: metrics, logger: logger}
}

// ReadTable implements TabularStore.
func (s *InstrumentedStore) ReadTable(ctx context.Context, name string) (models.Table, error) {
	start := time.Now()
	table, err := s.next.ReadTable(ctx, name)
	s.observe(name, "read", start, err)
	return table, err
}

// ClearAndWrite implements TabularStore.
func (s *InstrumentedStore) ClearAndWrite(ctx context.Context, name string, table models.Table) error {
	start := time.Now()
	err := s.next.ClearAndWrite(ctx, name, table)
	s.observe(name, "clear_and_write", start, err)
	return err
}

// AppendRows implements TabularStore.
func (s *InstrumentedStore) AppendRows(ctx context.Context, name string, table models.Table) error {
	start := time.Now()
	err := s.next.AppendRows(ctx, name, table)
	s.observe(name, "append", start, err)
	return err
}

// CreateTable implements TabularStore.
func (s *InstrumentedStore) CreateTable(ctx context.Context, name string, header []string) error {
	start := time.Now()
	err := s.next.CreateTable(ctx, name, header)
	s.observe(name, "create", start, err)
	return err
}

// Unwrap returns the decorated store.
func (s *InstrumentedStore) Unwrap() TabularStore {
	return s.next
}

func (s *InstrumentedStore) observe(table, op string, start time.Time, err error) {
	s.metrics.ObserveStoreOperation(table, op, time.Since(start))
	if err == nil || appErrors.IsTableNotFound(err) {
		return
	}
	s.metrics.RecordStoreError(table, op)
	s.logger.Error("store operation failed", zap.String("table", table), zap.String("operation", op), zap.Error(err))
}

// CachedStore serves ReadTable from the snapshot cache and invalidates a
// table's entry on every write to it.
type CachedStore struct {
	next  TabularStore
	cache *CacheService
	ttl   time.Duration
}

// NewCachedStore wraps next with a read-through cache.
func NewCachedStore(next TabularStore, cache *CacheService, ttl time.Duration) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl}
}

func snapshotKey(name string) string {
	return "sheet:" + name
}

// ReadTable implements TabularStore.
func (s *CachedStore) ReadTable(ctx context.Context, name string) (models.Table, error) {
	var cached models.Table
	if hit, _ := s.cache.Get(ctx, snapshotKey(name), &cached); hit {
		return cached, nil
	}
	table, err := s.next.ReadTable(ctx, name)
	if err != nil {
		return table, err
	}
	_ = s.cache.Set(ctx, snapshotKey(name), table, s.ttl)
	return table, nil
}

// ClearAndWrite implements TabularStore.
func (s *CachedStore) ClearAndWrite(ctx context.Context, name string, table models.Table) error {
	defer s.invalidate(ctx, name)
	return s.next.ClearAndWrite(ctx, name, table)
}

// AppendRows implements TabularStore.
func (s *CachedStore) AppendRows(ctx context.Context, name string, table models.Table) error {
	defer s.invalidate(ctx, name)
	return s.next.AppendRows(ctx, name, table)
}

// CreateTable implements TabularStore.
func (s *CachedStore) CreateTable(ctx context.Context, name string, header []string) error {
	defer s.invalidate(ctx, name)
	return s.next.CreateTable(ctx, name, header)
}

// Unwrap returns the store behind the cache.
func (s *CachedStore) Unwrap() TabularStore {
	return s.next
}

func (s *CachedStore) invalidate(ctx context.Context, name string) {
	_ = s.cache.Delete(ctx, snapshotKey(name))
}

// uncached peels cache layers off store so reads hit the backing store.
// Other decorators are kept.
func uncached(store TabularStore) TabularStore {
	switch s := store.(type) {
	case *CachedStore:
		return uncached(s.Unwrap())
	case *InstrumentedStore:
		if inner := uncached(s.Unwrap()); inner != s.Unwrap() {
			return &InstrumentedStore{next: inner, metrics: s.metrics, logger: s.logger}
		}
	}
	return store
}
