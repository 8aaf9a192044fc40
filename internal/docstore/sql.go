package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// documentRecord is the single table behind SQLStore.
type documentRecord struct {
	Collection string    `gorm:"primaryKey;size:128"`
	ID         string    `gorm:"primaryKey;size:64"`
	Version    int64     `gorm:"not null;default:1"`
	Body       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index"`
	UpdatedAt  time.Time
}

func (documentRecord) TableName() string {
	return "documents"
}

var jsonFieldName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore stores documents as JSON text rows in a GORM-managed table. Updates are
// compare-and-swap on the version column.
type SQLStore struct {
	db          *gorm.DB
	retryBudget time.Duration
}

// NewSQLStore wraps an open GORM connection. Call Migrate before first use.
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, retryBudget: defaultRetryBudget}
}

// Migrate creates or updates the documents table.
func (s *SQLStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&documentRecord{})
}

// Migrated reports whether the documents table exists.
func (s *SQLStore) Migrated(ctx context.Context) bool {
	return s.db.WithContext(ctx).Migrator().HasTable(&documentRecord{})
}

func (s *SQLStore) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	rec := documentRecord{
		Collection: collection,
		ID:         uuid.NewString(),
		Version:    1,
		Body:       string(body),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (s *SQLStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var rec documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.toDocument()
}

func (r *documentRecord) toDocument() (*Document, error) {
	data, err := decodeData([]byte(r.Body))
	if err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.ID, err)
	}
	return &Document{ID: r.ID, Version: r.Version, Data: data}, nil
}

// Update is a read, patch and compare-and-swap write on the version column. An unconditional
// update that loses the swap backs off with jitter and retries until retryBudget runs out.
func (s *SQLStore) Update(ctx context.Context, collection, id string, patch *Patch, opts ...UpdateOption) error {
	o := resolveUpdateOptions(opts)

	attempt := func() (struct{}, error) {
		doc, err := s.Get(ctx, collection, id)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if o.ifVersion > 0 && doc.Version != o.ifVersion {
			return struct{}{}, backoff.Permanent(ErrVersionConflict)
		}
		if err := patch.Apply(doc.Data); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		body, err := json.Marshal(doc.Data)
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("encode document %s: %w", id, err))
		}

		res := s.db.WithContext(ctx).
			Model(&documentRecord{}).
			Where("collection = ? AND id = ? AND version = ?", collection, id, doc.Version).
			Updates(map[string]any{
				"body":       string(body),
				"version":    gorm.Expr("version + 1"),
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return struct{}{}, backoff.Permanent(res.Error)
		}
		if res.RowsAffected == 1 {
			return struct{}{}, nil
		}
		if o.ifVersion > 0 {
			return struct{}{}, backoff.Permanent(ErrVersionConflict)
		}
		return struct{}{}, ErrVersionConflict
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(NewContentionBackOff()),
		backoff.WithMaxElapsedTime(s.retryBudget))
	if errors.Is(err, ErrVersionConflict) && o.ifVersion == 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return err
}

func (s *SQLStore) Delete(ctx context.Context, collection, id string) error {
	res := s.db.WithContext(ctx).
		Where("collection = ? AND id = ?", collection, id).
		Delete(&documentRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) List(ctx context.Context, collection string) ([]*Document, error) {
	var recs []documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("created_at ASC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return toDocuments(recs)
}

// FindEqual pushes the filter into the database on Postgres (jsonb) and SQLite (json1).
// Other dialects scan the collection.
func (s *SQLStore) FindEqual(ctx context.Context, collection, field, value string) ([]*Document, error) {
	if !jsonFieldName.MatchString(field) {
		return nil, fmt.Errorf("invalid field name %q", field)
	}

	q := s.db.WithContext(ctx).Where("collection = ?", collection)
	switch s.db.Dialector.Name() {
	case "postgres":
		q = q.Where("(body::jsonb ->> ?) = ?", field, value)
	case "sqlite":
		q = q.Where("json_extract(body, ?) = ?", "$."+field, value)
	default:
		docs, err := s.List(ctx, collection)
		if err != nil {
			return nil, err
		}
		out := make([]*Document, 0, len(docs))
		for _, d := range docs {
			if matchesEqual(d.Data, field, value) {
				out = append(out, d)
			}
		}
		return out, nil
	}

	var recs []documentRecord
	if err := q.Order("created_at ASC, id ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return toDocuments(recs)
}

func (s *SQLStore) FindIn(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	var recs []documentRecord
	err := s.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", collection, ids).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	docs, err := toDocuments(recs)
	if err != nil {
		return nil, err
	}
	return orderByIDs(docs, ids), nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toDocuments(recs []documentRecord) ([]*Document, error) {
	docs := make([]*Document, 0, len(recs))
	for i := range recs {
		doc, err := recs[i].toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
