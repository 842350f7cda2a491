package chat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// millisecondThreshold separates epoch seconds from epoch milliseconds.
const millisecondThreshold = 1e12

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp normalizes the timestamp shapes backends send: epoch
// seconds, epoch milliseconds (values above 1e12), numeric strings and
// ISO-8601 strings. Zone-less strings are read as UTC. Anything unparsable,
// including nil and zero, yields the current time.
func ParseTimestamp(value any) time.Time {
	if parsed, ok := parseTimestamp(value); ok {
		return parsed
	}
	return time.Now()
}

func parseTimestamp(value any) (time.Time, bool) {
	switch typed := value.(type) {
	case time.Time:
		return typed, !typed.IsZero()
	case float64:
		return fromEpoch(typed)
	case float32:
		return fromEpoch(float64(typed))
	case int:
		return fromEpoch(float64(typed))
	case int64:
		return fromEpoch(float64(typed))
	case json.Number:
		number, err := typed.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(number)
	case string:
		return parseTimestampString(typed)
	}
	return time.Time{}, false
}

func parseTimestampString(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if number, err := strconv.ParseFloat(value, 64); err == nil {
		return fromEpoch(number)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func fromEpoch(value float64) (time.Time, bool) {
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return time.Time{}, false
	}
	if value > millisecondThreshold {
		return time.UnixMilli(int64(value)), true
	}
	seconds, fraction := math.Modf(value)
	return time.Unix(int64(seconds), int64(fraction*1e9)), true
}
