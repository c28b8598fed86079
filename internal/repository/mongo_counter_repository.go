package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCounterRepository struct {
	coll *mongo.Collection
}

// NewMongoCounterRepository returns a counter backed by findOneAndUpdate $inc.
func NewMongoCounterRepository(db *mongo.Database) CounterRepository {
	return &mongoCounterRepository{coll: db.Collection(CountersCollection)}
}

func (r *mongoCounterRepository) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Value, nil
}
