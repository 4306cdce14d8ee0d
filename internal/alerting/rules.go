package alerting

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/apiarylabs/hivewatch/internal/datastore/entities"
)

// Breach is a rule violation that should become an alert.
type Breach struct {
	Kind     entities.AlertType
	Severity entities.Severity
	Message  string
	Snapshot map[string]any
}

// num renders a value in its shortest form: 44 not 44.000000.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func baseSnapshot(r *entities.SensorReading) map[string]any {
	return map[string]any{
		"reading_id":        r.ID,
		"device_id":         r.DeviceID,
		"reading_timestamp": r.Timestamp.UTC().Format(time.RFC3339),
	}
}

// CheckTemperature alerts when the temperature leaves [min, max].
// Values on a bound do not alert.
func CheckTemperature(r *entities.SensorReading, th *entities.ThresholdSet) *Breach {
	if r.Temperature == nil {
		return nil
	}
	t := *r.Temperature
	var deviation float64
	var msg string
	switch {
	case t < th.TemperatureMin:
		deviation = th.TemperatureMin - t
		msg = fmt.Sprintf("Temperature too low: %s°C (minimum: %s°C)", num(t), num(th.TemperatureMin))
	case t > th.TemperatureMax:
		deviation = t - th.TemperatureMax
		msg = fmt.Sprintf("Temperature too high: %s°C (maximum: %s°C)", num(t), num(th.TemperatureMax))
	default:
		return nil
	}

	snap := baseSnapshot(r)
	snap["temperature"] = t
	snap["threshold_min"] = th.TemperatureMin
	snap["threshold_max"] = th.TemperatureMax
	return &Breach{
		Kind:     entities.AlertTemperature,
		Severity: TemperatureSeverity(deviation),
		Message:  msg,
		Snapshot: snap,
	}
}

// CheckHumidity alerts when relative humidity leaves [min, max].
func CheckHumidity(r *entities.SensorReading, th *entities.ThresholdSet) *Breach {
	if r.Humidity == nil {
		return nil
	}
	h := *r.Humidity
	var deviation float64
	var msg string
	switch {
	case h < th.HumidityMin:
		deviation = th.HumidityMin - h
		msg = fmt.Sprintf("Humidity too low: %s%% (minimum: %s%%)", num(h), num(th.HumidityMin))
	case h > th.HumidityMax:
		deviation = h - th.HumidityMax
		msg = fmt.Sprintf("Humidity too high: %s%% (maximum: %s%%)", num(h), num(th.HumidityMax))
	default:
		return nil
	}

	snap := baseSnapshot(r)
	snap["humidity"] = h
	snap["threshold_min"] = th.HumidityMin
	snap["threshold_max"] = th.HumidityMax
	return &Breach{
		Kind:     entities.AlertHumidity,
		Severity: HumiditySeverity(deviation),
		Message:  msg,
		Snapshot: snap,
	}
}

// CheckWeight compares the current weight with the previous day's
// reading. No previous reading, or one without a weight, means no alert.
func CheckWeight(current, previous *entities.SensorReading, th *entities.ThresholdSet) *Breach {
	if current.Weight == nil || previous == nil || previous.Weight == nil {
		return nil
	}
	change := math.Abs(*current.Weight - *previous.Weight)
	if change <= th.WeightChangeThreshold {
		return nil
	}

	snap := baseSnapshot(current)
	snap["current_weight"] = *current.Weight
	snap["previous_weight"] = *previous.Weight
	snap["weight_change"] = change
	snap["threshold"] = th.WeightChangeThreshold
	snap["previous_reading_id"] = previous.ID
	return &Breach{
		Kind:     entities.AlertWeight,
		Severity: WeightSeverity(change, th.WeightChangeThreshold),
		Message: fmt.Sprintf("Significant weight change: %.2fkg in 24h (threshold: %skg)",
			change, num(th.WeightChangeThreshold)),
		Snapshot: snap,
	}
}

// CheckSound alerts when the sound level exceeds the threshold.
func CheckSound(r *entities.SensorReading, th *entities.ThresholdSet) *Breach {
	if r.SoundLevel == nil || *r.SoundLevel <= th.SoundLevelThreshold {
		return nil
	}
	level := *r.SoundLevel

	snap := baseSnapshot(r)
	snap["sound_level"] = level
	snap["threshold"] = th.SoundLevelThreshold
	return &Breach{
		Kind:     entities.AlertSound,
		Severity: SoundSeverity(level, th.SoundLevelThreshold),
		Message:  fmt.Sprintf("High sound level detected: %ddB (threshold: %ddB)", level, th.SoundLevelThreshold),
		Snapshot: snap,
	}
}

// CheckBattery alerts when the battery is at or below the warning level.
func CheckBattery(r *entities.SensorReading, th *entities.ThresholdSet) *Breach {
	if r.BatteryLevel == nil || *r.BatteryLevel > th.BatteryWarningLevel {
		return nil
	}
	level := *r.BatteryLevel

	snap := baseSnapshot(r)
	snap["battery_level"] = level
	snap["threshold"] = th.BatteryWarningLevel
	return &Breach{
		Kind:     entities.AlertBattery,
		Severity: BatterySeverity(level, th.BatteryWarningLevel),
		Message:  fmt.Sprintf("Low battery level: %d%% (warning level: %d%%)", level, th.BatteryWarningLevel),
		Snapshot: snap,
	}
}

// PreviousDay returns the half-open [start, end) of the calendar date of
// now minus 24h in loc.
func PreviousDay(now time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := now.Add(-24 * time.Hour).In(loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
