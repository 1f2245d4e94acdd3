package nui

import (
	"fmt"
	"strings"
	"time"
)

// Timestamp is a crawl instant together with whether it carries a UTC
// offset. Naive timestamps render without an offset, zoned ones with it.
// Precision is microseconds; anything finer is dropped.
type Timestamp struct {
	t     time.Time
	zoned bool
}

// Naive keeps only the wall-clock fields of t, discarding its location.
func Naive(t time.Time) Timestamp {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return Timestamp{t: time.Date(y, mo, d, h, mi, s, microseconds(t)*1000, time.UTC)}
}

// Zoned keeps t together with its UTC offset. No conversion is applied:
// 10:00+02:00 renders as 10:00+02:00, not 08:00+00:00.
func Zoned(t time.Time) Timestamp {
	return Timestamp{t: t.Add(-time.Duration(t.Nanosecond() % 1000)), zoned: true}
}

func microseconds(t time.Time) int {
	return t.Nanosecond() / 1000
}

// Time returns the underlying instant. For naive timestamps the location is UTC.
func (ts Timestamp) Time() time.Time {
	return ts.t
}

// IsZoned reports whether the timestamp carries a UTC offset.
func (ts Timestamp) IsZoned() bool {
	return ts.zoned
}

// IsZero reports whether the timestamp was never set.
func (ts Timestamp) IsZero() bool {
	return ts.t.IsZero()
}

// ISO renders the ISO-8601 form used both in the fingerprint and in the
// serialized record: YYYY-MM-DDTHH:MM:SS, then .ffffff when the microsecond
// part is non-zero, then ±HH:MM[:SS] when zoned.
func (ts Timestamp) ISO() string {
	var sb strings.Builder
	sb.WriteString(ts.t.Format("2006-01-02T15:04:05"))

	if us := microseconds(ts.t); us != 0 {
		fmt.Fprintf(&sb, ".%06d", us)
	}

	if ts.zoned {
		_, offset := ts.t.Zone()
		sign := '+'
		if offset < 0 {
			sign = '-'
			offset = -offset
		}
		fmt.Fprintf(&sb, "%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
		if sec := offset % 60; sec != 0 {
			fmt.Fprintf(&sb, ":%02d", sec)
		}
	}

	return sb.String()
}

// String implements fmt.Stringer.
func (ts Timestamp) String() string {
	return ts.ISO()
}

// ParseTimestamp parses an ISO-8601 timestamp. A value without an offset
// yields a naive timestamp. Spellings ISO would not produce ("Z", a
// fraction of other than six digits, ".000000") are accepted and
// normalized, so the result may render differently from s.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return Naive(t), nil
	}

	for _, layout := range []string{"2006-01-02T15:04:05Z07:00", "2006-01-02T15:04:05Z07:00:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Zoned(t), nil
		}
	}

	return Timestamp{}, fmt.Errorf("%w: crawl_date %q is not an ISO-8601 timestamp", ErrInvalidField, s)
}

// ParseCanonicalTimestamp is ParseTimestamp restricted to the exact form
// ISO renders. Stored records hash that string, so any other spelling of
// the same instant is rejected rather than silently normalized.
func ParseCanonicalTimestamp(s string) (Timestamp, error) {
	ts, err := ParseTimestamp(s)
	if err != nil {
		return Timestamp{}, err
	}

	if iso := ts.ISO(); iso != s {
		return Timestamp{}, fmt.Errorf("%w: crawl_date %q is not in canonical form %q", ErrInvalidField, s, iso)
	}

	return ts, nil
}
