package alerting

import "github.com/apiarylabs/hivewatch/internal/datastore/entities"

// TemperatureSeverity grades a deviation in °C beyond the violated bound.
func TemperatureSeverity(deviation float64) entities.Severity {
	switch {
	case deviation >= 5:
		return entities.SeverityCritical
	case deviation >= 3:
		return entities.SeverityHigh
	case deviation >= 1:
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}

// HumiditySeverity grades a deviation in percentage points.
func HumiditySeverity(deviation float64) entities.Severity {
	switch {
	case deviation >= 20:
		return entities.SeverityCritical
	case deviation >= 15:
		return entities.SeverityHigh
	case deviation >= 10:
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}

// WeightSeverity grades a 24h weight change relative to the threshold.
func WeightSeverity(change, threshold float64) entities.Severity {
	switch {
	case change >= threshold*3:
		return entities.SeverityCritical
	case change >= threshold*2:
		return entities.SeverityHigh
	case change >= threshold*1.5:
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}

// SoundSeverity grades a sound level in dB against the threshold.
func SoundSeverity(level, threshold int) entities.Severity {
	switch {
	case level >= threshold+20:
		return entities.SeverityCritical
	case level >= threshold+15:
		return entities.SeverityHigh
	case level >= threshold+10:
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}

// BatterySeverity grades a battery percentage. The critical and high
// tiers are absolute; only medium depends on the warning level.
func BatterySeverity(level, warning int) entities.Severity {
	switch {
	case level <= 5:
		return entities.SeverityCritical
	case level <= 10:
		return entities.SeverityHigh
	case level <= warning:
		return entities.SeverityMedium
	default:
		return entities.SeverityLow
	}
}
