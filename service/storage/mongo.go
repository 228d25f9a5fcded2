package storage

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mongoOnce sync.Once
	mongoDB   *mongo.Database
)

type MongoConfig struct {
	URI      string
	Database string
}

// InitMongo connects the shared database handle (singleton).
func InitMongo(c MongoConfig) error {
	var initErr error
	mongoOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
		if err != nil {
			initErr = err
			return
		}
		if err := client.Ping(ctx, nil); err != nil {
			initErr = err
			return
		}
		mongoDB = client.Database(c.Database)
	})
	return initErr
}

// GetMongo returns the shared database; panics if InitMongo was never called.
func GetMongo() *mongo.Database {
	if mongoDB == nil {
		panic("mongo not initialized, call InitMongo first")
	}
	return mongoDB
}
