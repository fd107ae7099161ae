package database

import (
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/syncforge/stripemirror/app/models"
	"github.com/syncforge/stripemirror/internal/pkg/config"
	"github.com/syncforge/stripemirror/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// SetupDatabase opens the mirror database and prepares the bookkeeping
// tables. Mirror tables themselves are managed by versioned migrations, not
// AutoMigrate.
func SetupDatabase(cfg *config.Config) error {
	gormCfg := &gorm.Config{}
	if env.IsDev() {
		// Echo SQL in development.
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err == nil {
			sqlDB, derr := DB.DB()
			if derr != nil {
				return derr
			}
			if cfg.MaxOpenConns > 0 {
				sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
			}

			return DB.AutoMigrate(&models.WebhookEvent{})
		}

		log.Warnf("failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return err
}

func GetDB() *gorm.DB {
	return DB
}
