package database

import (
	"context"
	"fmt"
	"time"

	"civic-polls/config"
	"civic-polls/internal/repository"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect opens the shared gorm handle. TranslateError makes unique
// violations surface as gorm.ErrDuplicatedKey.
func Connect(cfg *config.Config) error {
	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, sslMode)

	logLevel := logger.Warn
	if cfg.AppMode == "debug" {
		logLevel = logger.Info
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("get generic database object: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return nil
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// HealthCheck pings and runs a trivial query.
func HealthCheck(ctx context.Context) error {
	if err := Ping(); err != nil {
		return err
	}
	var one int
	return DB.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error
}

// RunMigrations brings the schema up to date.
func RunMigrations() error {
	return repository.InitSchema(DB)
}

func TableExists(table string) (bool, error) {
	return DB.Migrator().HasTable(table), nil
}

func GetTableCount(table string) (int64, error) {
	var n int64
	err := DB.Table(table).Count(&n).Error
	return n, err
}

// CoreTables lists the tables the status command reports on.
var CoreTables = []string{
	"profiles",
	"user_roles",
	"user_sessions",
	"polls",
	"poll_options",
	"votes",
	"email_subscribers",
}
