package database

import (
	"context"
	"database/sql"

	apperrors "ticketflow/internal/errors"
	"ticketflow/internal/models"
)

// GetSetting returns the value stored under key, or "" when unset.
func (d *Database) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, selectSettingQuery, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", apperrors.NewDatabaseError("get setting", err).WithContext("key", key)
	}
	return value, nil
}

func (d *Database) SaveSetting(ctx context.Context, setting models.Setting) error {
	err := withRetry(ctx, "save setting", func() error {
		_, err := d.db.ExecContext(ctx, upsertSettingQuery, setting.Key, setting.Value)
		return err
	})
	if err != nil {
		return apperrors.NewDatabaseError("save setting", err).WithContext("key", setting.Key)
	}
	return nil
}
