package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/evently_backend/config"
)

// CounterRepository hands out sequence numbers from the "counters" collection
type CounterRepository struct {
	collection *mongo.Collection
}

func NewCounterRepository(db *mongo.Client) *CounterRepository {
	return &CounterRepository{
		collection: config.GetCollection(db, "counters"),
	}
}

// Next atomically increments the named counter and returns the new value
func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// Seed raises the named counter to at least value. It never lowers it.
func (r *CounterRepository) Seed(ctx context.Context, name string, value int64) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$max": bson.M{"seq": value}},
		options.Update().SetUpsert(true),
	)
	return err
}
