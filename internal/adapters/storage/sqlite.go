package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lcalzada-xor/wprov/internal/core/domain"
	"github.com/lcalzada-xor/wprov/internal/core/ports"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

var _ ports.CredentialStore = (*SQLiteAdapter)(nil)

// SQLiteAdapter implements ports.CredentialStore using GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// CredentialModel is the GORM model for a saved network.
type CredentialModel struct {
	Label     string `gorm:"primaryKey"`
	SSID      string
	Password  string
	Security  string
	UpdatedAt time.Time
}

// NewSQLiteAdapter opens the database at path and migrates the schema.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newAdapter(db)
}

func newAdapter(db *gorm.DB) (*SQLiteAdapter, error) {
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CredentialModel{}); err != nil {
		return nil, err
	}
	return &SQLiteAdapter{db: db}, nil
}

// Load returns the credentials saved under label.
func (a *SQLiteAdapter) Load(ctx context.Context, label string) (domain.NetworkCredentials, error) {
	var model CredentialModel
	err := a.db.WithContext(ctx).First(&model, "label = ?", label).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NetworkCredentials{}, domain.ErrCredentialsNotFound
	}
	if err != nil {
		return domain.NetworkCredentials{}, err
	}
	return domain.NetworkCredentials{
		SSID:     model.SSID,
		Password: model.Password,
		Security: domain.Security(model.Security),
	}, nil
}

// Save upserts the credentials under label.
func (a *SQLiteAdapter) Save(ctx context.Context, label string, creds domain.NetworkCredentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	model := CredentialModel{
		Label:     label,
		SSID:      creds.SSID,
		Password:  creds.Password,
		Security:  string(creds.Security),
		UpdatedAt: time.Now(),
	}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		UpdateAll: true,
	}).Create(&model).Error
}

// Reset deletes the credentials under label.
func (a *SQLiteAdapter) Reset(ctx context.Context, label string) error {
	return a.db.WithContext(ctx).Delete(&CredentialModel{}, "label = ?", label).Error
}

// Close closes the database connection.
func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
