package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Videos collection: videoId is the idempotency key for the whole pipeline
	videosCollection := db.Collection("videos")
	videoIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "video_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "indexed", Value: 1}},
		},
	}
	_, err := videosCollection.Indexes().CreateMany(context.Background(), videoIndexes)
	if err != nil {
		return err
	}

	// Transcripts collection: one checkpoint document per video
	transcriptsCollection := db.Collection("transcripts")
	transcriptIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "video_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err = transcriptsCollection.Indexes().CreateMany(context.Background(), transcriptIndexes)
	if err != nil {
		return err
	}

	// Chat history collection
	chatCollection := db.Collection("chat_history")
	chatIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "session_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "updated_at", Value: -1}},
		},
	}
	_, err = chatCollection.Indexes().CreateMany(context.Background(), chatIndexes)
	if err != nil {
		return err
	}

	return nil
}
