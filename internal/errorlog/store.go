package errorlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/karousn/sftpbridge/internal/sftp"
	"github.com/karousn/sftpbridge/pkg/logger"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Filters narrows List and Export queries.
type Filters struct {
	Method string
	Trace  string
	Since  *time.Time
	Until  *time.Time
}

// ListOptions controls pagination and filtering for error log queries.
type ListOptions struct {
	Page     int
	PageSize int
	Filters  Filters
}

// Store persists transfer failures reported by sessions.
//
// LogError never returns an error: a failing database must not turn an
// advisory record into a transfer failure, so write problems go to the
// process log instead.
type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	fields map[string]any
}

// NewStore constructs a Store using the provided database handle.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("errorlog: db is required")
	}
	return &Store{db: db, log: logger.WithModule("errorlog")}, nil
}

// WithFields returns a child store whose records carry the given fields
// in their context column. The receiver is left unchanged.
func (s *Store) WithFields(fields map[string]any) *Store {
	merged := make(map[string]any, len(s.fields)+len(fields))
	for key, value := range s.fields {
		merged[key] = value
	}
	for key, value := range fields {
		merged[key] = value
	}
	return &Store{db: s.db, log: s.log, fields: merged}
}

// LogError records one failure reported by a session.
func (s *Store) LogError(method, message, trace string) {
	entry := ErrorLog{
		Method:  strings.TrimSpace(method),
		Message: message,
		Trace:   strings.TrimSpace(trace),
	}

	if len(s.fields) > 0 {
		if payload, err := json.Marshal(s.fields); err == nil {
			entry.Context = datatypes.JSON(payload)
		}
	}

	if err := s.db.WithContext(context.Background()).Create(&entry).Error; err != nil {
		s.log.Warn("record transfer failure",
			zap.String("method", entry.Method),
			zap.String("trace", entry.Trace),
			zap.Error(err))
	}
}

// List returns paginated error logs ordered by creation time descending.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]ErrorLog, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > maxPageSize {
		perPage = defaultPageSize
	}

	var (
		results []ErrorLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&ErrorLog{})
	query = applyFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("errorlog: count records: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("errorlog: list records: %w", err)
	}

	return results, total, nil
}

// Export returns error logs that match the provided filters without pagination.
func (s *Store) Export(ctx context.Context, filters Filters) ([]ErrorLog, error) {
	ctx = ensureContext(ctx)

	var records []ErrorLog
	query := s.db.WithContext(ctx).Model(&ErrorLog{})
	query = applyFilters(query, filters)

	if err := query.
		Order("created_at DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("errorlog: export records: %w", err)
	}

	return records, nil
}

// CleanupOlderThan removes error logs older than the supplied retention window (in days).
func (s *Store) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("errorlog: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&ErrorLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("errorlog: cleanup records: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyFilters(query *gorm.DB, filters Filters) *gorm.DB {
	if filters.Method != "" {
		query = query.Where("method = ?", filters.Method)
	}
	if filters.Trace != "" {
		query = query.Where("trace = ?", filters.Trace)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

var _ sftp.ErrorLogger = (*Store)(nil)
