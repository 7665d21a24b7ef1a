package database

import (
	"fmt"
	"log"
	"os"
	"strings"

	"danceschool-backend/billing"
	"danceschool-backend/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect() {
	// .env is optional outside local development.
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded, relying on environment")
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "db"
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
		host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), os.Getenv("DB_NAME"))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		fmt.Println(err)
		panic("Could not connect to database")
	}
}

func AutoMigrate() {
	DB.AutoMigrate(
		&models.User{},
		&models.Student{},
		&models.DanceClass{},
		&models.Invoice{},
		&models.Transaction{},
		&models.PaymentNotification{},
		&models.WebhookEvent{},
		&models.ActivityLog{},
		&models.IdempotencyKey{},
	)

	// At most one live billing notification per (student, invoice). The store
	// serializes upserts; this index is the schema-level backstop.
	cats := billing.BillingCategories()
	quoted := make([]string, len(cats))
	for i, cat := range cats {
		quoted[i] = "'" + cat + "'"
	}
	DB.Exec(fmt.Sprintf(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_notifications_live_billing
		 ON payment_notifications (student_id, invoice_id)
		 WHERE category IN (%s)`,
		strings.Join(quoted, ", ")))
}
