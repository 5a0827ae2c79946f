// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Redis is nil unless redis_addr is configured.
	Redis *redis.Client

	// Background holds what BuildHandler starts so Shutdown can stop it.
	// DBDeps is passed by value, so this is a shared pointer.
	Background *background
}
