package repository

import (
	"context"
	"database/sql"
	"time"

	"agrismart/internal/models"
)

// SettingsRepo is a flat key/value store for saved preferences.
type SettingsRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// DeviceRepo reads the registered device list. Registration itself lives elsewhere.
type DeviceRepo interface {
	List(ctx context.Context, kind string) ([]models.RegisteredDevice, error)
}

// EventQuery selects log rows. Zero bounds and an empty Type match everything.
// A positive Limit keeps only the newest Limit rows.
type EventQuery struct {
	From  time.Time
	To    time.Time
	Type  string
	Limit int
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, q EventQuery) ([]models.DeviceEvent, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
}

type Repository struct {
	Settings SettingsRepo
	Devices  DeviceRepo
	Events   EventRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Settings: NewSettingsSQLite(db),
		Devices:  NewDeviceSQLite(db),
		Events:   NewEventSQLite(db),
	}
}
