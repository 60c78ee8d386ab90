// internal/database/mongodb.go
package database

import (
	"context"
	"fmt"
	"time"

	"relieflink-backend/internal/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(cfg *config.Config) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	database := client.Database(cfg.DatabaseName)

	logrus.Infof("Connected to MongoDB: %s", cfg.DatabaseName)

	return &MongoDB{
		Client:   client,
		Database: database,
	}, nil
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}

	logrus.Info("Disconnected from MongoDB")
	return nil
}

// CreateIndexes creates indexes for all collections.
// NOTE: bson.D is used instead of maps to preserve key order in
// compound indexes.
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	userCollection := m.Database.Collection("users")
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "vai_tro", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}

	if _, err := userCollection.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	centerCollection := m.Database.Collection("relief_centers")
	centerIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "ten_trung_tam", Value: 1}},
		},
	}

	if _, err := centerCollection.Indexes().CreateMany(ctx, centerIndexes); err != nil {
		return fmt.Errorf("failed to create relief center indexes: %w", err)
	}

	resourceCollection := m.Database.Collection("resources")
	resourceIndexes := []mongo.IndexModel{
		{
			// Compound index for candidate selection during matching
			Keys: bson.D{
				{Key: "trang_thai", Value: 1},
				{Key: "loai", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "id_trung_tam", Value: 1}},
		},
	}

	if _, err := resourceCollection.Indexes().CreateMany(ctx, resourceIndexes); err != nil {
		return fmt.Errorf("failed to create resource indexes: %w", err)
	}

	requestCollection := m.Database.Collection("relief_requests")
	requestIndexes := []mongo.IndexModel{
		{
			// Compound index for the moderation queue
			Keys: bson.D{
				{Key: "trang_thai_phe_duyet", Value: 1},
				{Key: "diem_uu_tien", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "trang_thai", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "id_nguoi_dung", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "trang_thai_matching", Value: 1}},
		},
	}

	if _, err := requestCollection.Indexes().CreateMany(ctx, requestIndexes); err != nil {
		return fmt.Errorf("failed to create relief request indexes: %w", err)
	}

	distributionCollection := m.Database.Collection("distributions")
	distributionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "id_yeu_cau", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "id_tinh_nguyen_vien", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "ma_giao_dich", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := distributionCollection.Indexes().CreateMany(ctx, distributionIndexes); err != nil {
		return fmt.Errorf("failed to create distribution indexes: %w", err)
	}

	notificationCollection := m.Database.Collection("notifications")
	notificationIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "id_nguoi_nhan", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "id_nguoi_nhan", Value: 1},
				{Key: "da_doc", Value: 1},
			},
		},
	}

	if _, err := notificationCollection.Indexes().CreateMany(ctx, notificationIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %w", err)
	}

	auditCollection := m.Database.Collection("audit_entries")
	auditIndexes := []mongo.IndexModel{
		{
			// Chain scans read entries in insertion order
			Keys: bson.D{
				{Key: "id_phan_phoi", Value: 1},
				{Key: "thoi_gian", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "id_yeu_cau", Value: 1}},
		},
	}

	if _, err := auditCollection.Indexes().CreateMany(ctx, auditIndexes); err != nil {
		return fmt.Errorf("failed to create audit indexes: %w", err)
	}

	logrus.Info("Indexes created for all collections")
	return nil
}
