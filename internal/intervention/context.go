package intervention

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/quantumlife/focuscoach/internal/core"
)

// Context keys accepted at the engine boundary.
const (
	KeyTaskComplexity    = "task_complexity"
	KeyTimePressure      = "time_pressure"
	KeyInterruptions     = "interruptions"
	KeyContextSwitches   = "context_switches"
	KeyDistractions      = "distractions"
	KeyDeepWorkStreak    = "deep_work_streak_minutes"
	KeyMinutesSinceBreak = "minutes_since_break"
	KeyEnergyLevel       = "energy_level"
	KeyStressLevel       = "stress_level"
	KeyTimeOfDay         = "time_of_day"
	KeyTriggers          = "triggers"
)

// MaxCount caps every event count. Larger inputs read as MaxCount.
const MaxCount = 1_000_000

// ParseContext converts a loosely typed context map into a snapshot.
// Unusable entries are dropped and described in the returned warnings;
// parsing never fails.
func ParseContext(raw map[string]interface{}) (core.ContextSnapshot, []string) {
	var snap core.ContextSnapshot
	var warnings []string

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := raw[key]
		var err error

		switch strings.ToLower(key) {
		case KeyTaskComplexity:
			snap.TaskComplexity, err = floatField(val)
		case KeyTimePressure:
			snap.TimePressure, err = floatField(val)
		case KeyInterruptions, KeyContextSwitches:
			var n *int
			if n, err = countField(val); err == nil {
				snap.Interruptions = addCount(snap.Interruptions, *n)
			}
		case KeyDistractions:
			snap.Distractions, err = countField(val)
		case KeyDeepWorkStreak:
			snap.DeepWorkStreakMinutes, err = floatField(val)
		case KeyMinutesSinceBreak:
			snap.MinutesSinceBreak, err = floatField(val)
		case KeyEnergyLevel:
			snap.EnergyLevel, err = floatField(val)
		case KeyStressLevel:
			snap.StressLevel, err = floatField(val)
		case KeyTimeOfDay:
			snap.TimeOfDay, err = timeOfDayField(val)
		case KeyTriggers:
			snap.Triggers, err = triggersField(val)
		default:
			warnings = append(warnings, fmt.Sprintf("ignored unknown key %q", key))
			continue
		}

		if err != nil {
			warnings = append(warnings, fmt.Sprintf("ignored %s: %v", key, err))
		}
	}

	return snap, warnings
}

func toFloat(val interface{}) (float64, error) {
	var f float64
	switch v := val.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case int32:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number")
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", val)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

func floatField(val interface{}) (*float64, error) {
	f, err := toFloat(val)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func countField(val interface{}) (*int, error) {
	f, err := toFloat(val)
	if err != nil {
		return nil, err
	}
	n := int(math.Round(math.Max(0, math.Min(f, MaxCount))))
	return &n, nil
}

func addCount(cur *int, n int) *int {
	if cur != nil {
		n = saturatingAdd(*cur, n)
	}
	return &n
}

// saturatingAdd sums two counts, capped at MaxCount.
func saturatingAdd(a, b int) int {
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	if a > MaxCount-b {
		return MaxCount
	}
	return a + b
}

func timeOfDayField(val interface{}) (*core.TimeOfDay, error) {
	if s, ok := val.(string); ok {
		switch tod := core.TimeOfDay(strings.ToLower(strings.TrimSpace(s))); tod {
		case core.TimeMorning, core.TimeAfternoon, core.TimeEvening, core.TimeNight:
			return &tod, nil
		}
	}
	f, err := toFloat(val)
	if err != nil {
		return nil, fmt.Errorf("want morning, afternoon, evening, night or an hour")
	}
	hour := int(f)
	if hour < 0 || hour > 23 {
		return nil, fmt.Errorf("hour %d out of range", hour)
	}
	tod := core.TimeOfDayForHour(hour)
	return &tod, nil
}

func triggersField(val interface{}) ([]string, error) {
	var parts []string
	switch v := val.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("trigger %v is not a string", item)
			}
			parts = append(parts, s)
		}
	default:
		return nil, fmt.Errorf("unsupported type %T", val)
	}

	var out []string
	for _, p := range parts {
		if tag := strings.ToLower(strings.TrimSpace(p)); tag != "" {
			out = append(out, tag)
		}
	}
	return out, nil
}
