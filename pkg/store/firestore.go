package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// FirestoreStore keeps records as documents named "<owner>#<subject>".
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a store over collection.
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) doc(key Key) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(docID(key))
}

// Get implements Store. Firestore document reads are strongly consistent.
func (s *FirestoreStore) Get(ctx context.Context, key Key) (types.SubjectRecord, error) {
	snap, err := s.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return types.SubjectRecord(snap.Data()), nil
}

// Merge implements Store.
func (s *FirestoreStore) Merge(ctx context.Context, key Key, fields map[string]any) error {
	_, err := s.doc(key).Set(ctx, stamp(fields, time.Now()), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func docID(key Key) string {
	return key.String()
}

// Consistency implements Store.
func (s *FirestoreStore) Consistency() Consistency { return Strong }
