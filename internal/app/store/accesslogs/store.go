// internal/app/store/accesslogs/store.go
package accesslogstore

import (
	"context"
	"time"

	"github.com/dalemusser/aimap/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding access log entries.
const CollectionName = "access_logs"

// QueryFilter defines filters for querying access log entries.
type QueryFilter struct {
	Endpoint  string
	IP        string
	RoomID    string
	Success   *bool
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
}

// Store manages access log records.
type Store struct {
	c *mongo.Collection
}

// New creates a new access log Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// Insert appends one entry.
func (s *Store) Insert(ctx context.Context, e models.AccessLogEntry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, e)
	return err
}

// Query retrieves entries matching the filter, newest first. Operators use it
// for incident review; the request path never reads the log.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]models.AccessLogEntry, error) {
	query := bson.M{}
	if filter.Endpoint != "" {
		query["endpoint"] = filter.Endpoint
	}
	if filter.IP != "" {
		query["ip"] = filter.IP
	}
	if filter.RoomID != "" {
		query["room_id"] = filter.RoomID
	}
	if filter.Success != nil {
		query["success"] = *filter.Success
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var entries []models.AccessLogEntry
	if err := cur.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteExpired removes entries whose expires_at is at or before cutoff.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
