package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pauljones0/smart-shopper/internal/models"
)

const firestoreCollection = "verdicts"

type verdictDoc struct {
	Key        string    `firestore:"key"`
	Verdict    string    `firestore:"verdict"`
	Confidence int       `firestore:"confidence"`
	StoredAt   time.Time `firestore:"storedAt"`
}

// FirestoreCache shares verdicts between server instances.
type FirestoreCache struct {
	client *firestore.Client
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewFirestoreCache(ctx context.Context, projectID string, ttl time.Duration, logger *slog.Logger, opts ...option.ClientOption) (*FirestoreCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return &FirestoreCache{client: client, ttl: ttl, now: time.Now, logger: logger.With("component", "firestore_cache")}, nil
}

// docID maps a cache key onto a valid document ID. Keys contain '/'.
func docID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (c *FirestoreCache) Get(ctx context.Context, key string) (models.Sentiment, bool, error) {
	doc, err := c.client.Collection(firestoreCollection).Doc(docID(key)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return models.Sentiment{}, false, nil
		}
		return models.Sentiment{}, false, fmt.Errorf("failed to get verdict %s: %w", key, err)
	}
	if !doc.Exists() {
		return models.Sentiment{}, false, nil
	}

	var v verdictDoc
	if err := doc.DataTo(&v); err != nil {
		return models.Sentiment{}, false, fmt.Errorf("failed to unmarshal verdict data: %w", err)
	}
	return c.fromDoc(v)
}

func (c *FirestoreCache) fromDoc(v verdictDoc) (models.Sentiment, bool, error) {
	if expired(v.StoredAt, c.now(), c.ttl) {
		return models.Sentiment{}, false, nil
	}
	verdict, err := models.ParseVerdict(v.Verdict)
	if err != nil {
		c.logger.Warn("Discarding unreadable cached verdict", "key", v.Key, "error", err)
		return models.Sentiment{}, false, nil
	}
	return models.Sentiment{Verdict: verdict, Confidence: v.Confidence}, true, nil
}

func (c *FirestoreCache) Set(ctx context.Context, key string, s models.Sentiment) error {
	_, err := c.client.Collection(firestoreCollection).Doc(docID(key)).Set(ctx, verdictDoc{
		Key:        key,
		Verdict:    string(s.Verdict),
		Confidence: s.Confidence,
		StoredAt:   c.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to store verdict %s: %w", key, err)
	}
	return nil
}

// aggregationCount reads the value of a count aggregation result.
func aggregationCount(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case *firestorepb.Value:
		return val.GetIntegerValue(), nil
	}
	return 0, fmt.Errorf("count aggregation result has unexpected type %T", v)
}

// Trim deletes the oldest verdicts by storedAt.
func (c *FirestoreCache) Trim(ctx context.Context, maxEntries int) error {
	if maxEntries <= 0 {
		return nil
	}
	collectionRef := c.client.Collection(firestoreCollection)

	countSnapshot, err := collectionRef.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to count verdicts for trimming: %w", err)
	}
	countValue, ok := countSnapshot["all"]
	if !ok {
		return fmt.Errorf("count aggregation result for trimming was invalid: 'all' key missing")
	}
	count, err := aggregationCount(countValue)
	if err != nil {
		return err
	}
	if int(count) <= maxEntries {
		return nil
	}

	numToDelete := int(count) - maxEntries
	c.logger.Info("Trimming verdict cache", "current", count, "max", maxEntries, "deleting", numToDelete)

	iter := collectionRef.
		OrderBy("storedAt", firestore.Asc).
		Limit(numToDelete).
		Documents(ctx)
	defer iter.Stop()

	bulkWriter := c.client.BulkWriter(ctx)
	defer bulkWriter.End()

	deleted := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to iterate verdicts for trimming: %w", err)
		}
		if _, err := bulkWriter.Delete(doc.Ref); err != nil {
			c.logger.Warn("Error queueing verdict delete", "id", doc.Ref.ID, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		bulkWriter.Flush()
	}
	return nil
}

func (c *FirestoreCache) Close() error {
	return c.client.Close()
}
