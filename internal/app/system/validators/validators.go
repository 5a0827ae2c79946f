// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// collections lists every collection the app writes, with its validator.
// Collections must exist before the first multi-document transaction
// touches them; older servers cannot create them inside one.
var collections = []struct {
	name   string
	schema func() bson.M // nil: no validator
}{
	{"rooms", roomsSchema},
	{"room_members", roomMembersSchema},
	{"room_locations", roomLocationsSchema},
	{"rate_limits", rateLimitsSchema},
	{"access_logs", nil}, // append-only
}

// EnsureAll creates missing collections and attaches JSON-Schema validators.
// Servers that do not support collMod validators (some DocumentDB versions)
// are logged and skipped.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	existing := map[string]bool{}
	if names, err := db.ListCollectionNames(ctx, bson.M{}); err == nil {
		for _, n := range names {
			existing[n] = true
		}
	}

	var problems []string
	for _, c := range collections {
		if !existing[c.name] {
			err := db.CreateCollection(ctx, c.name)
			switch {
			case err == nil:
				zap.L().Info("created collection", zap.String("collection", c.name))
			case commandErr(err, []int32{48}, "already exists", "namespace exists"):
				// Lost a race with another instance.
			default:
				zap.L().Warn("createCollection failed", zap.String("collection", c.name), zap.Error(err))
				problems = append(problems, c.name+": "+err.Error())
				continue
			}
		}
		if c.schema == nil {
			continue
		}
		if err := setValidator(ctx, db, c.name, c.schema()); err != nil {
			if commandErr(err, []int32{59, 115}, "no such command", "not implemented", "not supported") {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", c.name))
				continue
			}
			problems = append(problems, c.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	if err := db.RunCommand(ctx, cmd).Err(); err != nil {
		return err
	}
	zap.L().Debug("validator ensured", zap.String("collection", name))
	return nil
}

// commandErr reports whether err is a server command error with one of codes,
// or whose text contains one of phrases (for servers that omit codes).
func commandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	msg := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

/* ------------------------- JSON-Schema docs ---------------------- */

var roomIDPattern = "^[a-z0-9]{12}$"

func roomsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "created_at", "expires_at"},
			"properties": bson.M{
				"_id":        bson.M{"bsonType": "string", "pattern": roomIDPattern},
				"created_at": bson.M{"bsonType": "date"},
				"expires_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func roomMembersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"room_id", "uid", "nickname", "joined_at"},
			"properties": bson.M{
				"room_id":    bson.M{"bsonType": "string", "pattern": roomIDPattern},
				"uid":        bson.M{"bsonType": "string", "minLength": 1},
				"nickname":   bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"message":    bson.M{"bsonType": "string"},
				"joined_at":  bson.M{"bsonType": "date"},
				"updated_at": bson.M{"bsonType": "date"},
				"rev":        bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
			},
		},
	}
}

func roomLocationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"room_id", "uid", "lat", "lng", "updated_at"},
			"properties": bson.M{
				"room_id":    bson.M{"bsonType": "string", "pattern": roomIDPattern},
				"uid":        bson.M{"bsonType": "string", "minLength": 1},
				"lat":        bson.M{"bsonType": "double", "minimum": -90, "maximum": 90},
				"lng":        bson.M{"bsonType": "double", "minimum": -180, "maximum": 180},
				"updated_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func rateLimitsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "expires_at"},
			"properties": bson.M{
				"_id":                  bson.M{"bsonType": "string", "minLength": 1},
				"attempts":             bson.M{"bsonType": "array", "maxItems": 50, "items": bson.M{"bsonType": "date"}},
				"consecutive_failures": bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
				"expires_at":           bson.M{"bsonType": "date"},
			},
		},
	}
}
