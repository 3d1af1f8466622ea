package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const updatedAtField = "updatedAt"

// FirestoreStore keeps each collection as a Firestore collection
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore connects to projectID. An empty credentialsFile uses
// application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

func (f *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return snapshotDocument(snap)
}

func (f *FirestoreStore) Put(ctx context.Context, collection, id string, data json.RawMessage) error {
	fields, err := firestoreFields(data)
	if err != nil {
		return fmt.Errorf("failed to convert %s/%s: %w", collection, id, err)
	}
	fields[updatedAtField] = firestore.ServerTimestamp

	if _, err := f.client.Collection(collection).Doc(id).Set(ctx, fields); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := f.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (f *FirestoreStore) List(ctx context.Context, collection string) ([]Document, error) {
	iter := f.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", collection, err)
		}
		doc, err := snapshotDocument(snap)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (f *FirestoreStore) DeleteBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	iter := f.client.Collection(collection).Where(updatedAtField, "<", cutoff).Documents(ctx)
	defer iter.Stop()

	var removed int64
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return removed, fmt.Errorf("failed to query stale %s: %w", collection, err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, fmt.Errorf("failed to delete %s/%s: %w", collection, snap.Ref.ID, err)
		}
		removed++
	}
	return removed, nil
}

func snapshotDocument(snap *firestore.DocumentSnapshot) (Document, error) {
	fields := snap.Data()
	doc := Document{ID: snap.Ref.ID, UpdatedAt: snap.UpdateTime}
	if ts, ok := fields[updatedAtField].(time.Time); ok {
		doc.UpdatedAt = ts
	}
	delete(fields, updatedAtField)

	data, err := json.Marshal(fields)
	if err != nil {
		return Document{}, fmt.Errorf("failed to encode %s: %w", snap.Ref.ID, err)
	}
	doc.Data = data
	return doc, nil
}

// firestoreFields converts a JSON object to Firestore values. Integral numbers become
// int64 so epoch milliseconds and ids are not stored as doubles.
func firestoreFields(data json.RawMessage) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("document must be a JSON object")
	}
	for k, v := range fields {
		fields[k] = normalizeNumbers(v)
	}
	return fields, nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = normalizeNumbers(inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = normalizeNumbers(inner)
		}
		return t
	}
	return v
}
