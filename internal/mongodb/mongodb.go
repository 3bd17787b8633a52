// Package mongodb is the document metadata backend.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/weiwangfds/filevault/config"
	"github.com/weiwangfds/filevault/internal/logger"
	"github.com/weiwangfds/filevault/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	filesCollection = "files"
	tagsCollection  = "tags"
)

// Connect opens a client, verifies it with a ping and creates the indexes.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, *mongo.Database, error) {
	timeout := time.Duration(cfg.ConnectTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if cfg.MaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxOpenConns))
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(cfg.Name)
	if err := EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	logger.WithField("database", cfg.Name).Info("metadata database ready")
	return client, db, nil
}

// EnsureIndexes creates the unique and lookup indexes. Existing indexes with
// the same definition are left alone.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(filesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "checksum", Value: 1}, {Key: "filename", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_file_per_user_and_content"),
		},
		{
			Keys:    bson.D{{Key: "fileId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_file_id"),
		},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags")},
		{Keys: bson.D{{Key: "visibility", Value: 1}}, Options: options.Index().SetName("visibility")},
	})
	if err != nil {
		return fmt.Errorf("create file indexes: %w", err)
	}

	_, err = db.Collection(tagsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "tagName", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("unique_tag_name"),
	})
	if err != nil {
		return fmt.Errorf("create tag indexes: %w", err)
	}
	return nil
}

// Pinger reports whether the primary answers.
func Pinger(client *mongo.Client) repository.Pinger {
	return repository.PingFunc(func(ctx context.Context) error {
		return client.Ping(ctx, readpref.Primary())
	})
}

func sortDocument(sorts []sortSpec) bson.D {
	d := bson.D{}
	for _, s := range sorts {
		dir := 1
		if s.desc {
			dir = -1
		}
		d = append(d, bson.E{Key: s.field, Value: dir})
	}
	// _id keeps paging stable among equal keys
	return append(d, bson.E{Key: "_id", Value: 1})
}

type sortSpec struct {
	field string
	desc  bool
}
