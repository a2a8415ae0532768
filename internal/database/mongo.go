package database

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/bigkaa/tgmedia-indexer/internal/config"
)

// ConnectMongo создаёт клиент MongoDB и проверяет доступность через ping.
func ConnectMongo(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(cfg.MongoConnectTimeout).
		SetAppName("tgmedia-indexer")

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания клиента MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	logger.Info("Подключение к MongoDB установлено",
		slog.String("database", cfg.MongoDatabase),
		slog.String("collection", cfg.MongoCollection),
	)

	return client, nil
}

// MediaIndexes — индексы коллекции медиафайлов.
// Уникальность file_key обеспечивается самим _id.
func MediaIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "file_name", Value: "text"}},
			Options: options.Index().SetName("file_name_text"),
		},
		{
			Keys:    bson.D{{Key: "file_type", Value: 1}},
			Options: options.Index().SetName("file_type"),
		},
	}
}

// EnsureMediaIndexes создаёт индексы коллекции медиафайлов (идемпотентно).
func EnsureMediaIndexes(ctx context.Context, coll *mongo.Collection, logger *slog.Logger) error {
	names, err := coll.Indexes().CreateMany(ctx, MediaIndexes())
	if err != nil {
		return fmt.Errorf("ошибка создания индексов %s: %w", coll.Name(), err)
	}
	logger.Info("Индексы MongoDB проверены",
		slog.String("collection", coll.Name()),
		slog.Any("indexes", names),
	)
	return nil
}

// MongoReadinessChecker — проверка готовности MongoDB для health endpoint.
type MongoReadinessChecker struct {
	client *mongo.Client
}

// NewMongoReadinessChecker создаёт проверку готовности MongoDB.
func NewMongoReadinessChecker(client *mongo.Client) *MongoReadinessChecker {
	return &MongoReadinessChecker{client: client}
}

// CheckReady проверяет подключение к MongoDB через ping.
func (c *MongoReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
	defer cancel()

	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return "fail", fmt.Sprintf("MongoDB недоступна: %v", err)
	}
	return "ok", "подключение активно"
}
