// internal/app/store/ratelimits/mongostore.go
package ratelimitstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding rate limit counters.
const CollectionName = "rate_limits"

// MongoStore keeps one document per counter key.
type MongoStore struct {
	c *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{c: db.Collection(CollectionName)}
}

// Load returns the counter for key, found=false when absent.
func (s *MongoStore) Load(ctx context.Context, key string) (models.RateLimitCounter, bool, error) {
	var c models.RateLimitCounter
	err := s.c.FindOne(ctx, bson.M{"_id": key}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.RateLimitCounter{}, false, nil
	}
	if err != nil {
		return models.RateLimitCounter{}, false, err
	}
	return c, true, nil
}

// Save overwrites the counter document. Two concurrent writers may lose one
// update; the limiter tolerates that.
func (s *MongoStore) Save(ctx context.Context, c models.RateLimitCounter) error {
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": c.Key}, c, options.Replace().SetUpsert(true))
	return err
}

// DeleteExpired removes counters whose expires_at is at or before cutoff.
func (s *MongoStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
