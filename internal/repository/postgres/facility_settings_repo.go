package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gymcheckin/internal/domain"
)

type facilitySettingsRepository struct {
	DB *sql.DB
}

// NewFacilitySettingsRepository returns the durable store for capacity settings.
func NewFacilitySettingsRepository(db *sql.DB) domain.FacilitySettingsRepository {
	return &facilitySettingsRepository{DB: db}
}

func (r *facilitySettingsRepository) GetCapacity(ctx context.Context, facilityID string) (domain.CapacityConfig, error) {
	query := `
		SELECT capacity_limit, warn_at
		FROM facility_settings
		WHERE facility_id = $1
	`
	var cfg domain.CapacityConfig
	err := r.DB.QueryRowContext(ctx, query, facilityID).Scan(&cfg.Limit, &cfg.WarnAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CapacityConfig{}, domain.ErrNotFound
		}
		return domain.CapacityConfig{}, err
	}
	return cfg, nil
}

func (r *facilitySettingsRepository) SaveCapacity(ctx context.Context, facilityID string, cfg domain.CapacityConfig) error {
	query := `
		INSERT INTO facility_settings (facility_id, capacity_limit, warn_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (facility_id) DO UPDATE
		SET capacity_limit = EXCLUDED.capacity_limit,
		    warn_at = EXCLUDED.warn_at,
		    updated_at = EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, query, facilityID, cfg.Limit, cfg.WarnAt, time.Now().UTC())
	return err
}
