package storage

import "time"

// timeLayout is fixed width so TEXT columns sort chronologically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseSQLiteTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts
		}
	}
	return time.Time{}
}
