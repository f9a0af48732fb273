package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"agrismart/internal/models"
)

type DeviceSQLite struct {
	db *sql.DB
}

func NewDeviceSQLite(db *sql.DB) *DeviceSQLite {
	return &DeviceSQLite{db: db}
}

var _ DeviceRepo = (*DeviceSQLite)(nil)

// List returns registered devices in registration order, optionally filtered by kind.
func (r *DeviceSQLite) List(ctx context.Context, kind string) ([]models.RegisteredDevice, error) {
	q := `SELECT id, kind, name, ip FROM devices`
	var args []any
	if kind = strings.ToLower(strings.TrimSpace(kind)); kind != "" {
		q += " WHERE kind = ?"
		args = append(args, kind)
	}
	q += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select devices: %w", err)
	}
	defer rows.Close()

	var out []models.RegisteredDevice
	for rows.Next() {
		var d models.RegisteredDevice
		if err := rows.Scan(&d.ID, &d.Kind, &d.Name, &d.IP); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
