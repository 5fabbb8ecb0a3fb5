package advisor

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Storage = &PostgresStorage{}

// snapshotRow is the GORM model backing PostgresStorage.
type snapshotRow struct {
	Key       string `gorm:"primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

func (snapshotRow) TableName() string { return "snapshots" }

// PostgresStorage implements the Storage interface on Postgres via GORM, for
// hosted deployments where state follows the account rather than the device.
type PostgresStorage struct {
	db *gorm.DB
}

// NewPostgresStorage connects to Postgres and migrates the snapshot table.
func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresStorage{db: db}, nil
}

// SaveSnapshot upserts the blob stored under key.
func (s *PostgresStorage) SaveSnapshot(key string, data []byte) error {
	row := snapshotRow{Key: key, Data: data, UpdatedAt: time.Now()}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the blob stored under key.
func (s *PostgresStorage) LoadSnapshot(key string) ([]byte, error) {
	var row snapshotRow
	err := s.db.First(&row, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return row.Data, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
