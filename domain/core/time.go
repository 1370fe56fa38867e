package core

import (
	"time"
)

// Timestamp is a wall-clock instant serialized as RFC 3339
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp { return Timestamp(t) }

func Now() Timestamp { return Timestamp(time.Now()) }

// ParseTimestamp reads an RFC 3339 timestamp
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp(t), nil
}

func (t Timestamp) IsZero() bool           { return time.Time(t).IsZero() }
func (t Timestamp) Before(u Timestamp) bool { return time.Time(t).Before(time.Time(u)) }
func (t Timestamp) After(u Timestamp) bool  { return time.Time(t).After(time.Time(u)) }

// CompactUTC formats the timestamp as yyyyMMddHHmmss in UTC, used in file names
func (t Timestamp) CompactUTC() string {
	return time.Time(t).UTC().Format("20060102150405")
}

func (t Timestamp) String() string { return time.Time(t).Format(time.RFC3339) }

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}
