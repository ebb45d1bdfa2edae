package history

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/symphonyoss/integration-maintenance/internal/report"
)

// MongoHistory persists run reports so an operator can see when and how the
// collection was touched.
type MongoHistory struct {
	col *mongo.Collection
}

func NewMongoHistory(col *mongo.Collection) *MongoHistory {
	return &MongoHistory{col: col}
}

// EnsureIndexes creates the lookup index used by Recent.
func (h *MongoHistory) EnsureIndexes(ctx context.Context) error {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "startedAt", Value: -1}}}
	if _, err := h.col.Indexes().CreateOne(ctx, idx); err != nil {
		return fmt.Errorf("history index: %w", err)
	}
	return nil
}

// Record upserts r keyed by its run id.
func (h *MongoHistory) Record(ctx context.Context, r *report.Report) error {
	filter := bson.M{"runId": r.RunID}
	opts := options.Update().SetUpsert(true)
	if _, err := h.col.UpdateOne(ctx, filter, bson.M{"$set": r}, opts); err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	return nil
}

// Recent returns up to limit reports for collection, newest first.
func (h *MongoHistory) Recent(ctx context.Context, collection string, limit int64) ([]report.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := h.col.Find(ctx, bson.M{"collection": collection}, opts)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	out := []report.Report{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
