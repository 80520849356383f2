package domain

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp wraps time.Time to tolerate the backend's date encoding.
// The backend emits LocalDateTime without a zone offset
// ("2026-03-15T10:00:00"); RFC 3339 is accepted as well.
type Timestamp struct {
	time.Time
}

const localDateTime = "2006-01-02T15:04:05"

// NewTimestamp builds a Timestamp from a time.Time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON parses either a zoneless LocalDateTime or an RFC 3339 string.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		ts.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		ts.Time = t
		return nil
	}
	t, err := time.ParseInLocation(localDateTime, s, time.Local)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	ts.Time = t
	return nil
}

// MarshalJSON emits the zoneless LocalDateTime form the backend expects.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + ts.Format(localDateTime) + `"`), nil
}
