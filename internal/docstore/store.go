// Package docstore is the document store adapter used by the repositories.
//
// A store holds JSON-shaped documents grouped into named collections and addressed by an
// opaque string id. Writes are single-document: there are no cross-document transactions.
// Each document carries a version that increases on every successful update, so callers can
// make an update conditional on the state they read (see IfVersion).
//
// Three backends implement Store: Redis (RedisStore), a GORM table (SQLStore, Postgres or
// SQLite) and MongoDB (MongoStore).
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("docstore: document not found")
	// ErrVersionConflict is returned when a conditional update lost against a concurrent write.
	ErrVersionConflict = errors.New("docstore: version conflict")
)

// defaultRetryBudget bounds how long an unconditional update keeps retrying lost
// compare-and-swap writes.
const defaultRetryBudget = 3 * time.Second

// NewContentionBackOff is the jittered schedule between compare-and-swap retries.
func NewContentionBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     2 * time.Millisecond,
		RandomizationFactor: 0.5,
		Multiplier:          1.5,
		MaxInterval:         50 * time.Millisecond,
	}
}

// Document is a stored document as read from a backend.
type Document struct {
	ID      string
	Version int64
	Data    map[string]any
}

// Decode unmarshals the document fields into v, which should be a pointer to a struct with
// json tags.
func (d *Document) Decode(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Store is the capability interface over a document database.
type Store interface {
	// Create writes a new document and returns its generated id.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)
	// Get reads one document. Missing documents yield ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Update applies patch atomically to one document. Missing documents yield ErrNotFound.
	// With IfVersion the update fails with ErrVersionConflict if the stored version differs.
	Update(ctx context.Context, collection, id string, patch *Patch, opts ...UpdateOption) error
	// Delete removes one document. Missing documents yield ErrNotFound.
	Delete(ctx context.Context, collection, id string) error
	// List returns every document of the collection in creation order.
	List(ctx context.Context, collection string) ([]*Document, error)
	// FindEqual returns the documents whose top-level string field equals value.
	FindEqual(ctx context.Context, collection, field, value string) ([]*Document, error)
	// FindIn returns the documents whose id is in ids, using one batched query.
	// Ids that do not resolve are skipped; results follow the order of ids.
	FindIn(ctx context.Context, collection string, ids []string) ([]*Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// UpdateOption tunes a single Update call.
type UpdateOption func(*updateOptions)

type updateOptions struct {
	ifVersion int64
}

// IfVersion makes the update conditional on the document still being at version v.
func IfVersion(v int64) UpdateOption {
	return func(o *updateOptions) {
		o.ifVersion = v
	}
}

func resolveUpdateOptions(opts []UpdateOption) updateOptions {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Fields converts a struct with json tags into the field map accepted by Create.
func Fields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return decodeData(raw)
}

// decodeData parses a JSON object keeping numbers as json.Number so integer counters
// survive a round trip unchanged.
func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	data := map[string]any{}
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

// uniqueIDs drops empty and repeated ids, keeping first occurrences.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// orderByIDs arranges docs in the order of ids, dropping ids without a document.
func orderByIDs(docs []*Document, ids []string) []*Document {
	byID := make(map[string]*Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}
	out := make([]*Document, 0, len(docs))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

func matchesEqual(data map[string]any, field, value string) bool {
	s, ok := data[field].(string)
	return ok && s == value
}
