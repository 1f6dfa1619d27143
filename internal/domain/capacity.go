package domain

import "context"

// DefaultWarnAt is the utilization ratio at which a warning is raised.
const DefaultWarnAt = 0.8

// CapacityStatus classifies a utilization ratio.
type CapacityStatus string

const (
	CapacityOK      CapacityStatus = "ok"
	CapacityWarning CapacityStatus = "warning"
	CapacityFull    CapacityStatus = "full"
)

// Severity orders statuses so transitions can be compared.
func (s CapacityStatus) Severity() int {
	switch s {
	case CapacityWarning:
		return 1
	case CapacityFull:
		return 2
	}
	return 0
}

// CapacityConfig is the operator-set occupancy limit for one facility.
// swagger:model CapacityConfig
type CapacityConfig struct {
	Limit  int     `json:"limit"`
	WarnAt float64 `json:"warn_at"`
}

// Validate returns error messages; empty means valid.
func (c CapacityConfig) Validate() []string {
	var errs []string
	if c.Limit <= 0 {
		errs = append(errs, "limit must be a positive integer")
	}
	if c.WarnAt < 0 || c.WarnAt > 1 {
		errs = append(errs, "warn_at must be between 0 and 1")
	}
	return errs
}

// CapacityUtilization is derived from the presence count and a CapacityConfig.
// swagger:model CapacityUtilization
type CapacityUtilization struct {
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Pct    float64        `json:"pct"`
	Status CapacityStatus `json:"status"`
}

// FacilitySettingsRepository stores the durable capacity configuration.
// Get returns ErrNotFound when nothing has been saved for the facility.
type FacilitySettingsRepository interface {
	GetCapacity(ctx context.Context, facilityID string) (CapacityConfig, error)
	SaveCapacity(ctx context.Context, facilityID string, cfg CapacityConfig) error
}

// CapacityAlert is the payload of a capacity notification.
type CapacityAlert struct {
	FacilityID  string
	Utilization CapacityUtilization
	Previous    CapacityStatus
}

// CapacityNotifier is told about every status change that raises severity.
type CapacityNotifier interface {
	NotifyCapacity(ctx context.Context, alert CapacityAlert) error
}
