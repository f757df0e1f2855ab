package storage

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Time is a millisecond-precision timestamp, JSON encoded as fractional unix
// seconds.
type Time int64

// Now returns the current time.
func Now() Time {
	return ToTime(time.Now())
}

// ToTime converts a time.Time to a storage.Time, truncating to milliseconds.
func ToTime(v time.Time) Time {
	return Time(v.UnixMilli())
}

// AsTime returns the time as UTC so its string value doesn't depend on the local time zone.
func (t Time) AsTime() time.Time {
	return time.UnixMilli(int64(t)).UTC()
}

// IsZero reports whether t is unset.
func (t Time) IsZero() bool {
	return t == 0
}

// MarshalJSON encodes t as unix seconds with up to three decimals.
func (t Time) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(t)/1000, 'f', -1, 64), nil
}

// UnmarshalJSON decodes integer or fractional unix seconds.
func (t *Time) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*t = Time(math.Round(f * 1000))
	return nil
}
