package graphite

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"graphout/internal/event"
)

// NumericFormat selects how metric values are rendered.
// Params: none.
// Returns: rendering policy name.
type NumericFormat string

const (
	// NumericLegacy renders interpolated values as floats and native numbers as-is.
	NumericLegacy NumericFormat = "legacy"
	// NumericFloat renders every value in float text form ("42.0").
	NumericFloat NumericFormat = "float"
	// NumericNative renders numbers in their own text form ("42", "2.5").
	NumericNative NumericFormat = "native"
)

// ParseNumericFormat validates a numeric_format option; empty selects legacy.
// Params: raw option text.
// Returns: policy or ErrConfiguration.
func ParseNumericFormat(raw string) (NumericFormat, error) {
	switch NumericFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", NumericLegacy:
		return NumericLegacy, nil
	case NumericFloat:
		return NumericFloat, nil
	case NumericNative:
		return NumericNative, nil
	default:
		return "", configError("numeric_format %q must be one of: legacy, float, native", raw)
	}
}

// FormatLine renders one plaintext protocol line.
// Params: path metric path; value rendered value; ts unix seconds.
// Returns: "<path> <value> <ts>\n".
func FormatLine(path, value string, ts int64) string {
	return path + " " + value + " " + strconv.FormatInt(ts, 10) + "\n"
}

// Formatter renders extracted metrics into protocol lines.
// Params: Numeric rendering policy (zero value means legacy).
// Returns: stateless line renderer.
type Formatter struct {
	Numeric NumericFormat
}

// Format renders one metric at timestamp ts.
// Params: m extracted metric; ts unix seconds.
// Returns: protocol line or ErrResolution when path or value cannot be rendered.
func (f Formatter) Format(m Metric, ts int64) (string, error) {
	if m.Path == "" {
		return "", fmt.Errorf("%w: empty metric path", ErrResolution)
	}
	if strings.ContainsAny(m.Path, " \t\r\n") {
		return "", fmt.Errorf("%w: metric path %q contains whitespace", ErrResolution, m.Path)
	}

	value, err := f.renderValue(m)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrResolution, m.Path, err)
	}
	return FormatLine(m.Path, value, ts), nil
}

// renderValue applies the numeric policy to one metric value.
// Params: m metric with value and origin.
// Returns: rendered number or coercion error.
func (f Formatter) renderValue(m Metric) (string, error) {
	switch f.Numeric {
	case NumericFloat:
		return floatText(m.Value)
	case NumericNative:
		return nativeText(m.Value)
	}

	switch m.Origin {
	case OriginLeaf:
		return nativeText(m.Value)
	case OriginField:
		if _, isNumber := m.Value.Number(); isNumber {
			return nativeText(m.Value)
		}
		return floatText(m.Value)
	default:
		return floatText(m.Value)
	}
}

// floatText coerces a value to float and renders it with a fractional part.
// Params: value raw metric value.
// Returns: text such as "42.0" or coercion error.
func floatText(value event.Value) (string, error) {
	if number, ok := value.Number(); ok {
		if !finite(number) {
			return "", fmt.Errorf("non-finite value")
		}
		return event.FormatFloat(number), nil
	}
	if text, ok := value.Text(); ok {
		number, err := parseNumber(text)
		if err != nil {
			return "", err
		}
		return event.FormatFloat(number), nil
	}
	return "", fmt.Errorf("value of kind %s is not numeric", value.Kind())
}

// nativeText renders numbers in their own text form; numeric strings pass trimmed.
// Params: value raw metric value.
// Returns: rendered text or coercion error.
func nativeText(value event.Value) (string, error) {
	if n, ok := value.IntValue(); ok {
		return strconv.FormatInt(n, 10), nil
	}
	if number, ok := value.Number(); ok {
		if !finite(number) {
			return "", fmt.Errorf("non-finite value")
		}
		return event.FormatFloat(number), nil
	}
	if text, ok := value.Text(); ok {
		if _, err := parseNumber(text); err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}
	return "", fmt.Errorf("value of kind %s is not numeric", value.Kind())
}

// parseNumber parses decimal text into a finite float.
// Params: text candidate number.
// Returns: parsed number or error for empty, non-numeric, or non-finite input.
func parseNumber(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("empty value")
	}
	number, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("value %q is not numeric", text)
	}
	if !finite(number) {
		return 0, fmt.Errorf("value %q is not finite", text)
	}
	return number, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
