// Package store persists evaluation interactions and runs with gorm on
// sqlite or postgres.
package store

import (
	"fmt"
	"time"

	"github.com/KamdynS/agentlab/evaluation"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config selects the database.
type Config struct {
	Type       string `mapstructure:"type" yaml:"type"` // "postgres" or "sqlite"
	Connection string `mapstructure:"connection" yaml:"connection"`
	MaxConns   int    `mapstructure:"max_conns" yaml:"max_conns"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// InteractionRecord is a stored RAG interaction.
type InteractionRecord struct {
	ID        string             `gorm:"primaryKey;size:36"`
	RunID     string             `gorm:"index;size:36"`
	Question  string             `gorm:"type:text"`
	Answer    string             `gorm:"type:text"`
	Contexts  []string           `gorm:"serializer:json"`
	Metrics   map[string]float64 `gorm:"serializer:json"`
	CreatedAt time.Time          `gorm:"index"`
}

// EvaluationRun is a stored dataset evaluation.
type EvaluationRun struct {
	ID        string `gorm:"primaryKey;size:36"`
	Kind      string `gorm:"index;size:16"` // "basic" or "rag"
	Dataset   string
	Cases     int
	Mean      float64
	Averages  map[string]float64 `gorm:"serializer:json"`
	CreatedAt time.Time          `gorm:"index"`
}

// DB wraps the gorm connection.
type DB struct {
	*gorm.DB
}

// Open connects and configures the pool.
func Open(cfg Config) (*DB, error) {
	var dialector gorm.Dialector
	switch cfg.Type {
	case "postgres":
		dialector = postgres.Open(cfg.Connection)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Connection)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}

	logLevel := logger.Silent
	switch cfg.LogLevel {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "error":
		logLevel = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxConns)
		sqlDB.SetMaxIdleConns(cfg.MaxConns / 2)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &DB{DB: db}, nil
}

func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(&InteractionRecord{}, &EvaluationRun{})
}

// SaveInteraction stores in under runID, which may be empty.
func (db *DB) SaveInteraction(runID string, in evaluation.Interaction) error {
	rec := InteractionRecord{
		ID:        in.ID,
		RunID:     runID,
		Question:  in.Question,
		Answer:    in.Answer,
		Contexts:  in.Contexts,
		Metrics:   in.Metrics,
		CreatedAt: in.Timestamp.UTC(),
	}
	if err := db.Create(&rec).Error; err != nil {
		return fmt.Errorf("save interaction %s: %w", in.ID, err)
	}
	return nil
}

// ListInteractions returns the newest interactions first. limit <= 0
// returns all of them.
func (db *DB) ListInteractions(limit int) ([]InteractionRecord, error) {
	var out []InteractionRecord
	q := db.Order("created_at desc, id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) SaveRun(run *EvaluationRun) error {
	return db.Create(run).Error
}

// ListRuns returns runs newest first.
func (db *DB) ListRuns() ([]EvaluationRun, error) {
	var out []EvaluationRun
	if err := db.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
