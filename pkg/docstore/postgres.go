package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cricmirror/core/pkg/database"
)

// PostgresStore keeps documents in the documents table as JSONB
type PostgresStore struct {
	db database.DBTX
}

func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	doc := Document{ID: id}
	err := p.db.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc.Data, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (p *PostgresStore) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	_, err := p.db.Exec(ctx, `
INSERT INTO documents (collection, id, data, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		collection, id, []byte(data))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, data, updated_at FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *PostgresStore) DeleteBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND updated_at < $2`, collection, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", collection, err)
	}
	return tag.RowsAffected(), nil
}
