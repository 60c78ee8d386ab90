package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

// Seeds the initial admin account. Self-registration never grants the admin
// role, so a fresh deployment runs this once:
//
//	ADMIN_EMAIL=admin@relieflink.vn ADMIN_PASSWORD=... go run scripts/seed_admin.go
func main() {
	mongoURI := getenv("MONGODB_URI", "mongodb://localhost:27017")
	databaseName := getenv("DATABASE_NAME", "relieflink")
	email := getenv("ADMIN_EMAIL", "admin@relieflink.vn")
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(ctx)

	collection := client.Database(databaseName).Collection("users")

	count, err := collection.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		log.Fatal(err)
	}
	if count > 0 {
		fmt.Printf("Admin %s already exists, nothing to do\n", email)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal(err)
	}

	now := time.Now()
	_, err = collection.InsertOne(ctx, bson.M{
		"email":         email,
		"mat_khau":      string(hash),
		"ho_va_ten":     "Quản trị viên",
		"vai_tro":       "admin",
		"so_dien_thoai": "",
		"dia_chi":       "",
		"thong_bao": bson.M{
			"nhan_thong_bao":  true,
			"thong_bao_email": true,
			"thong_bao_sms":   false,
		},
		"is_blocked": false,
		"created_at": now,
		"updated_at": now,
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Created admin account %s\n", email)
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
