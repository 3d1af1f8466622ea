// Package docstore persists the mirrored Cricbuzz documents. Documents are JSON
// objects addressed by collection and id.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collections
const (
	LiveMatches = "live_matches"
	Matches     = "matches"
	Scorecards  = "scorecards"
	Squads      = "squads"
	Commentary  = "commentary"
	SeriesStats = "series_stats"
)

var ErrNotFound = errors.New("document not found")

// Document is one stored JSON object
type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is implemented by the Postgres, Firestore and in-memory backends
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Put(ctx context.Context, collection, id string, data json.RawMessage) error
	Delete(ctx context.Context, collection, id string) error
	List(ctx context.Context, collection string) ([]Document, error)
	DeleteBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error)
}

// GetJSON loads a document and decodes it into dst
func GetJSON(ctx context.Context, s Store, collection, id string, dst any) error {
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(doc.Data, dst); err != nil {
		return fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return nil
}

// PutJSON encodes v and stores it
func PutJSON(ctx context.Context, s Store, collection, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, data)
}
