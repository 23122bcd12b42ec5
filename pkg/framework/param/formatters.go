package param

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/justyntemme/dspplug/pkg/abi"
)

// Display strings for parameter getters. Results always fit the host's
// value-string buffer.

// FormatFloat formats a float value by its unit label
func FormatFloat(label string, v float32) string {
	var s string
	switch strings.ToLower(label) {
	case "db":
		s = DecibelFormatter(float64(v))
	case "hz":
		s = FrequencyFormatter(float64(v))
	case "ms":
		s = TimeFormatter(float64(v))
	case "%":
		s = PercentFormatter(float64(v))
	case "":
		s = strconv.FormatFloat(float64(v), 'f', 2, 32)
	default:
		s = fmt.Sprintf("%.2f %s", v, label)
	}
	return abi.TruncateValueString(s)
}

// FormatInt formats an int value, preferring its value name
func FormatInt(b IntBounds, label string, v int32) string {
	if b.GoesToInf && v >= b.Max {
		return "Inf"
	}
	if b.ValueNames != nil && v >= b.Min && v <= b.Max {
		return abi.TruncateValueString(b.ValueNames[v-b.Min])
	}
	s := strconv.FormatInt(int64(v), 10)
	if label != "" {
		s += " " + label
	}
	return abi.TruncateValueString(s)
}

// FormatBool formats a bool value, preferring its value name
func FormatBool(b BoolBounds, v bool) string {
	if b.ValueNames != nil {
		if v {
			return abi.TruncateValueString(b.ValueNames[1])
		}
		return abi.TruncateValueString(b.ValueNames[0])
	}
	if v {
		return "On"
	}
	return "Off"
}

// ParseFloat parses user input for a float parameter with the given label
func ParseFloat(label, str string) (float32, error) {
	var (
		v   float64
		err error
	)
	switch strings.ToLower(label) {
	case "db":
		v, err = DecibelParser(str)
	case "hz":
		v, err = FrequencyParser(str)
	case "ms":
		v, err = TimeParser(str)
	case "%":
		v, err = PercentParser(str)
	default:
		v, err = strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(str), label)), 32)
	}
	return float32(v), err
}

// ParseInt parses a value name or a plain integer
func ParseInt(b IntBounds, str string) (int32, error) {
	str = strings.TrimSpace(str)
	for i, name := range b.ValueNames {
		if strings.EqualFold(name, str) {
			return b.Min + int32(i), nil
		}
	}
	if b.GoesToInf && strings.EqualFold(str, "inf") {
		return b.Max, nil
	}
	v, err := strconv.ParseInt(str, 10, 32)
	return int32(v), err
}

// ParseBool parses a value name or a Go bool literal
func ParseBool(b BoolBounds, str string) (bool, error) {
	str = strings.TrimSpace(str)
	if len(b.ValueNames) == 2 {
		if strings.EqualFold(str, b.ValueNames[0]) {
			return false, nil
		}
		if strings.EqualFold(str, b.ValueNames[1]) {
			return true, nil
		}
	}
	switch strings.ToLower(str) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return strconv.ParseBool(str)
}

// FrequencyFormatter formats frequency values with Hz/kHz
func FrequencyFormatter(hz float64) string {
	if hz >= 1000 {
		return fmt.Sprintf("%.2f kHz", hz/1000)
	}
	return fmt.Sprintf("%.1f Hz", hz)
}

// FrequencyParser parses frequency strings
func FrequencyParser(str string) (float64, error) {
	str = strings.TrimSpace(str)

	if strings.HasSuffix(str, "kHz") || strings.HasSuffix(str, "khz") {
		numStr := strings.TrimSuffix(strings.TrimSuffix(str, "kHz"), "khz")
		val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
		if err != nil {
			return 0, err
		}
		return val * 1000, nil
	}

	str = strings.TrimSuffix(strings.TrimSuffix(str, "Hz"), "hz")
	return strconv.ParseFloat(strings.TrimSpace(str), 64)
}

// DecibelFormatter formats dB values; -80 dB and below is silence
func DecibelFormatter(db float64) string {
	if db <= -80 {
		return "-inf dB"
	}
	return fmt.Sprintf("%.2f dB", db)
}

// DecibelParser parses dB strings
func DecibelParser(str string) (float64, error) {
	if strings.Contains(str, "∞") || strings.Contains(strings.ToLower(str), "inf") {
		return -80.0, nil
	}
	str = strings.TrimSuffix(strings.TrimSpace(str), "dB")
	str = strings.TrimSuffix(strings.TrimSpace(str), "db")
	return strconv.ParseFloat(strings.TrimSpace(str), 64)
}

// PercentFormatter formats percentage values
func PercentFormatter(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

// PercentParser parses percentage strings
func PercentParser(str string) (float64, error) {
	str = strings.TrimSuffix(strings.TrimSpace(str), "%")
	return strconv.ParseFloat(strings.TrimSpace(str), 64)
}

// TimeFormatter formats time values with appropriate units
func TimeFormatter(ms float64) string {
	if ms < 1 {
		return fmt.Sprintf("%.2f µs", ms*1000)
	} else if ms < 1000 {
		return fmt.Sprintf("%.1f ms", ms)
	}
	return fmt.Sprintf("%.2f s", ms/1000)
}

// TimeParser parses time strings into milliseconds
func TimeParser(str string) (float64, error) {
	str = strings.TrimSpace(str)

	if strings.HasSuffix(str, "µs") || strings.HasSuffix(str, "us") {
		numStr := strings.TrimSuffix(strings.TrimSuffix(str, "µs"), "us")
		val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
		if err != nil {
			return 0, err
		}
		return val / 1000, nil
	}

	if strings.HasSuffix(str, "s") && !strings.HasSuffix(str, "ms") {
		numStr := strings.TrimSuffix(str, "s")
		val, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
		if err != nil {
			return 0, err
		}
		return val * 1000, nil
	}

	str = strings.TrimSuffix(str, "ms")
	return strconv.ParseFloat(strings.TrimSpace(str), 64)
}
