// Package timex holds time helpers shared by the config loaders and
// repositories.
package timex

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from JSON either as a string
// understood by time.ParseDuration ("5s", "720h") or as integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration: %s", string(b))
	}
}

// ToUnixNano converts t for storage in an INTEGER column.
func ToUnixNano(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// FromUnixNano is the inverse of ToUnixNano.
func FromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// NullableUnixNano maps a nil time to NULL.
func NullableUnixNano(t *time.Time) any {
	if t == nil {
		return nil
	}
	return ToUnixNano(*t)
}
