package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// CanonicalTimestamp is the layout every timestamp is re-emitted in, always
// in UTC.
const CanonicalTimestamp = "2006-01-02 15:04:05"

// CanonicalDate is the layout for calendar dates.
const CanonicalDate = "2006-01-02"

// timestampLayouts are tried in order. Layouts without a zone are read as
// UTC, which is what the source uses for its own server-side timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp normalizes a source timestamp to UTC at second
// precision. An empty or unparseable value yields an invalid (absent)
// pgtype.Timestamptz; unparseable input also returns an error describing it.
func ParseTimestamp(raw string) (pgtype.Timestamptz, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return pgtype.Timestamptz{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return pgtype.Timestamptz{Time: t.UTC().Truncate(time.Second), Valid: true}, nil
		}
	}
	return pgtype.Timestamptz{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// ParseDate normalizes a source calendar date. Full timestamps are accepted
// and truncated to their UTC date.
func ParseDate(raw string) (pgtype.Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return pgtype.Date{}, nil
	}
	if t, err := time.Parse(CanonicalDate, s); err == nil {
		return pgtype.Date{Time: t, Valid: true}, nil
	}
	ts, err := ParseTimestamp(s)
	if err != nil || !ts.Valid {
		return pgtype.Date{}, fmt.Errorf("unparseable date %q", raw)
	}
	y, m, d := ts.Time.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}, nil
}

// FormatTimestamp renders ts in CanonicalTimestamp, or "" when absent.
func FormatTimestamp(ts pgtype.Timestamptz) string {
	if !ts.Valid {
		return ""
	}
	return ts.Time.UTC().Format(CanonicalTimestamp)
}

// FormatDate renders d in CanonicalDate, or "" when absent.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(CanonicalDate)
}
