// Package duration converts between time.Duration and the colon
// separated time strings UPnP AV services use, such as "1:02:33" in
// AVTransport position info and the duration attribute of DIDL-Lite
// resource elements. Fractional seconds ("0:00:01.500") are supported.
package duration

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidFormat is returned when a time string cannot be parsed.
var ErrInvalidFormat = errors.New("invalid duration format")

// NotImplemented is the placeholder some devices report while no track
// is loaded. Parse maps it to zero.
const NotImplemented = "NOT_IMPLEMENTED"

// Parse converts a UPnP time string to a duration. Components are
// interpreted right to left as seconds, minutes and hours, so both
// "2:33" and "0:02:33" are accepted.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == NotImplemented {
		return 0, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	var seconds float64
	scale := 1.0
	for i := len(parts) - 1; i >= 0; i-- {
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || value < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		seconds += value * scale
		scale *= 60
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Format renders a duration as "H:MM:SS", the form AVTransport expects
// for seek targets. Sub-second precision is truncated.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}

// FormatFractional renders a duration as "H:MM:SS.mmm" with
// millisecond precision, used in DIDL-Lite resource durations.
func FormatFractional(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	millis := int64(math.Round(float64(d) / float64(time.Millisecond)))
	total := millis / 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", total/3600, (total/60)%60, total%60, millis%1000)
}
