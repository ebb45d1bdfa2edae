package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/symphonyoss/integration-maintenance/internal/creatorid"
	"github.com/symphonyoss/integration-maintenance/internal/instance"
)

// MongoRepo implements Repository on the integrationconfiginstance collection.
type MongoRepo struct {
	col   *mongo.Collection
	field string
}

func NewMongoRepo(col *mongo.Collection, field string) *MongoRepo {
	if field == "" {
		field = creatorid.Field
	}
	return &MongoRepo{col: col, field: field}
}

func (m *MongoRepo) NormalizeCreator(ctx context.Context, value string) (instance.UpdateResult, error) {
	res, err := m.col.UpdateMany(ctx, creatorid.Filter(m.field), bson.M{"$set": bson.M{m.field: value}})
	if err != nil {
		return instance.UpdateResult{}, fmt.Errorf("update %s.%s: %w", m.col.Name(), m.field, err)
	}
	return instance.UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (m *MongoRepo) CountNonConforming(ctx context.Context) (int64, error) {
	n, err := m.col.CountDocuments(ctx, creatorid.Filter(m.field))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", m.col.Name(), err)
	}
	return n, nil
}

func (m *MongoRepo) FindNonConforming(ctx context.Context) ([]instance.Snapshot, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1, m.field: 1})
	cur, err := m.col.Find(ctx, creatorid.Filter(m.field), opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.col.Name(), err)
	}
	defer cur.Close(ctx)
	out := []instance.Snapshot{}
	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		v, ok := d[m.field]
		out = append(out, instance.Snapshot{ID: d["_id"], CreatorID: v, Present: ok})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoRepo) SampleNonConforming(ctx context.Context, limit int64) ([]instance.ConfigInstance, error) {
	opts := options.Find()
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cur, err := m.col.Find(ctx, creatorid.Filter(m.field), opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", m.col.Name(), err)
	}
	out := []instance.ConfigInstance{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RestoreCreators issues one bulk write with an update per snapshot. Each update is
// guarded on the field still holding value so later edits are never overwritten.
func (m *MongoRepo) RestoreCreators(ctx context.Context, snaps []instance.Snapshot, value string) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	models := make([]mongo.WriteModel, 0, len(snaps))
	for _, s := range snaps {
		filter := bson.M{"_id": s.ID, m.field: value}
		var update bson.M
		if s.Present {
			update = bson.M{"$set": bson.M{m.field: s.CreatorID}}
		} else {
			update = bson.M{"$unset": bson.M{m.field: ""}}
		}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update))
	}
	res, err := m.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, fmt.Errorf("restore %s.%s: %w", m.col.Name(), m.field, err)
	}
	return res.ModifiedCount, nil
}
