package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/totegamma/factguard/internal/infra/database/models"
)

func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags), // io writer
		logger.Config{
			SlowThreshold:             300 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Warn,            // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  true,                   // Enable color
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	return db, err
}

// MigratePostgres creates the schema and seeds the registry state row.
func MigratePostgres(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.RegistryState{},
		&models.RegistryEntry{},
		&models.FactBinding{},
		&models.CommitLog{},
		&models.PublishedFact{},
	)
	if err != nil {
		return err
	}

	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.RegistryState{ID: 1}).Error
}
