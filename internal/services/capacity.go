package services

import "gymcheckin/internal/domain"

// Utilization derives occupancy from the presence count and cfg. Pct is
// count/limit and is 0 when count is 0 or the limit is not positive.
func Utilization(count int, cfg domain.CapacityConfig) domain.CapacityUtilization {
	u := domain.CapacityUtilization{Count: count, Limit: cfg.Limit, Status: domain.CapacityOK}
	if count <= 0 || cfg.Limit <= 0 {
		return u
	}
	u.Pct = float64(count) / float64(cfg.Limit)
	warnAt := cfg.WarnAt
	if warnAt <= 0 {
		warnAt = domain.DefaultWarnAt
	}
	switch {
	case u.Pct >= 1:
		u.Status = domain.CapacityFull
	case u.Pct >= warnAt:
		u.Status = domain.CapacityWarning
	}
	return u
}
