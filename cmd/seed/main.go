package main

import (
	"fmt"
	"log"
	"os"

	"github.com/feavel/feeds/backend/internal/database"
	"github.com/feavel/feeds/backend/internal/models"
	"github.com/feavel/feeds/backend/internal/seed"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	command := "dev"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "dev":
		seedDev()
	case "test":
		seedTest()
	case "clean":
		cleanSeed()
	default:
		fmt.Println("Usage: seed [dev|test|clean]")
		fmt.Println("  dev   - Seed development database with realistic data")
		fmt.Println("  test  - Seed test database with minimal data")
		fmt.Println("  clean - Remove all seed data (use with caution)")
		os.Exit(1)
	}
}

func seedDev() {
	log.Println("🌱 Seeding development database...")

	db := mustConnect()
	defer database.Close(db)

	if err := seed.NewSeeder(db).Run(seed.DefaultOptions()); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✅ Development database seeded")
}

func seedTest() {
	log.Println("🌱 Seeding test database...")

	db := mustConnect()
	defer database.Close(db)

	opts := seed.Options{
		Users:           3,
		FeedsPerUser:    2,
		CommentsPerFeed: 3,
		Password:        "password123",
	}
	if err := seed.NewSeeder(db).Run(opts); err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("✅ Test database seeded")
}

func cleanSeed() {
	log.Println("🧹 Removing seed data...")

	db := mustConnect()
	defer database.Close(db)

	for _, model := range []any{
		&models.CommentLike{},
		&models.FeedLike{},
		&models.FeedComment{},
		&models.FeedCollaborator{},
		&models.Feed{},
		&models.User{},
	} {
		if err := db.Where("1 = 1").Delete(model).Error; err != nil {
			log.Fatalf("❌ Failed to clean: %v", err)
		}
	}

	log.Println("✅ Seed data removed")
}

func mustConnect() *gorm.DB {
	db, err := database.Initialize()
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Failed to migrate database: %v", err)
	}
	return db
}
