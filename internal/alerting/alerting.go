// Package alerting evaluates the latest hive telemetry against the owner's
// thresholds and records graded alerts, suppressing repeats of an alert
// that is still open.
package alerting

import (
	"errors"
	"time"
)

// Default windows. The dedup window is deliberately longer than the
// evaluation cadence: a persistent condition yields one alert per hour,
// not one per sweep.
const (
	DefaultLookbackWindow = 10 * time.Minute
	DefaultDedupWindow    = 60 * time.Minute
	DefaultRetentionDays  = 30
)

var (
	// ErrHiveNotMonitored is returned when an on-demand check targets an
	// inactive hive or one without active monitoring devices.
	ErrHiveNotMonitored = errors.New("hive is not actively monitored")
)
