package value

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// CoerceString converts raw text into a Value of the declared Kind. This is
// the single conversion point used by WPL's sub-field type declarations
// (kvarr's `ip@addr`, `digit@cnt`, ...) and by the kvarr/json scalar-value
// inference fallback when no declared type is present.
func CoerceString(raw string, want Kind) (Value, error) {
	switch want {
	case Chars, Ignore:
		return NewChars(raw), nil
	case Digit:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("coerce %q to digit: %w", raw, err)
		}
		return NewDigit(n), nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("coerce %q to float: %w", raw, err)
		}
		return NewFloat(f), nil
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Value{}, fmt.Errorf("coerce %q to bool: %w", raw, err)
		}
		return NewBool(b), nil
	case IPAddr:
		ip := net.ParseIP(raw)
		if ip == nil {
			return Value{}, fmt.Errorf("coerce %q to ip: invalid address", raw)
		}
		return NewIPAddr(ip), nil
	case Time:
		t, loc, err := parseTimeGuess(raw)
		if err != nil {
			return Value{}, fmt.Errorf("coerce %q to time: %w", raw, err)
		}
		return NewTime(t, loc), nil
	default:
		return Value{}, fmt.Errorf("coerce: unsupported target kind %s", want)
	}
}

// InferScalar infers a Kind from raw text when no declared type is present
// (kvarr's bare-token inference): bool, then int, then float, else chars.
func InferScalar(raw string) Value {
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return NewBool(b)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return NewDigit(n)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return NewFloat(f)
	}
	return NewChars(raw)
}

var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"Jan _2 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimeGuess(raw string) (time.Time, *time.Location, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, t.Location(), nil
		}
	}
	return time.Time{}, nil, fmt.Errorf("no matching time layout for %q", raw)
}

// FormatValue renders v back to its canonical text form, used for
// round-trip preservation of atomic fields (§8 round-trip law).
func FormatValue(v Value) string {
	switch v.Kind {
	case Ignore:
		return ""
	case Chars:
		return v.chars
	case Digit:
		return strconv.FormatInt(v.digit, 10)
	case Float:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(v.bool_)
	case IPAddr:
		return v.ip.String()
	case Time:
		if v.tz != nil {
			return v.time.In(v.tz).Format(time.RFC3339Nano)
		}
		return v.time.Format(time.RFC3339Nano)
	default:
		return ""
	}
}
