package core

import (
	"testing"
	"time"
)

func TestCoerceValue(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		column string
		want   any
	}{
		// Nulls
		{"empty", "", "c", nil},
		{"whitespace", "   ", "c", nil},
		{"NULL literal", "NULL", "c", nil},
		{"null lowercase", " null ", "c", nil},

		// Booleans
		{"true", "true", "c", true},
		{"TRUE", "TRUE", "c", true},
		{"False", "False", "c", false},
		{"yes stays text", "yes", "c", "yes"},

		// Integers
		{"integer", "42", "c", int64(42)},
		{"signed integer", "-17", "c", int64(-17)},
		{"plus sign", "+5", "c", int64(5)},
		{"max safe", "9007199254740991", "c", int64(9007199254740991)},
		{"beyond safe range stays text", "9007199254740993", "c", "9007199254740993"},
		{"13 digits in temporal column stay integer", "1705314600000", "created_at", int64(1705314600000)},

		// Floats
		{"decimal", "3.14", "c", 3.14},
		{"leading dot", ".5", "c", 0.5},
		{"negative decimal", "-0.25", "c", -0.25},
		{"trailing dot stays text", "5.", "c", "5."},

		// Text
		{"plain text", "hello", "c", "hello"},
		{"text keeps surrounding spaces", " hello ", "c", " hello "},
		{"unparseable date in date column", "not a date", "order_date", "not a date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CoerceValue(tt.raw, tt.column)
			if got != tt.want {
				t.Errorf("CoerceValue(%q, %q) = %#v, want %#v", tt.raw, tt.column, got, tt.want)
			}
		})
	}
}

func TestCoerceValue_Dates(t *testing.T) {
	orig := DateLocation
	DateLocation = time.UTC
	defer func() { DateLocation = orig }()

	tests := []struct {
		name   string
		raw    string
		column string
		want   time.Time
	}{
		{"iso datetime", "2024-01-15 10:30:00", "c", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"iso T separator", "2024-01-15T10:30", "c", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"iso date", "2024-01-15", "c", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2024-01-15T10:30:00+09:00", "c", time.Date(2024, 1, 15, 1, 30, 0, 0, time.UTC)},
		{"slashes", "2024/01/15 08:00:00", "c", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)},
		{"weekday with zone name", "Mon Jan 15 2024 10:30:00 GMT+0900 (Korean Standard Time)", "c", time.Date(2024, 1, 15, 1, 30, 0, 0, time.UTC)},
		{"us date in temporal column", "1/15/2024", "ship_date", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceValue(tt.raw, tt.column).(time.Time)
			if !ok {
				t.Fatalf("CoerceValue(%q) = %#v, want time.Time", tt.raw, CoerceValue(tt.raw, tt.column))
			}
			if !got.Equal(tt.want) {
				t.Errorf("CoerceValue(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseDate_EpochMillis(t *testing.T) {
	got, ok := ParseDate("1705314600000")
	if !ok || !got.Equal(time.UnixMilli(1705314600000)) {
		t.Errorf("ParseDate(epoch ms) = %v, %v", got, ok)
	}
}

func TestCoerceValue_WallClockInLocalZone(t *testing.T) {
	got, ok := CoerceValue("2024-01-15 10:30:00", "c").(time.Time)
	if !ok {
		t.Fatal("not a time.Time")
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestCoerceValue_EpochOutsideTemporalColumnIsInteger(t *testing.T) {
	if got := CoerceValue("1705314600000", "amount"); got != int64(1705314600000) {
		t.Errorf("got %#v, want int64", got)
	}
}

func TestTemporalColumnNames(t *testing.T) {
	yes := []string{"date", "order_date", "UPDATED_AT", "createdAt", "start_time", "event_timestamp", "datetime"}
	no := []string{"dated", "update", "timezone", "birthdate_note", "amount"}

	for _, c := range yes {
		if !temporalColumnRegex.MatchString(c) {
			t.Errorf("%q should look temporal", c)
		}
	}
	for _, c := range no {
		if temporalColumnRegex.MatchString(c) {
			t.Errorf("%q should not look temporal", c)
		}
	}
}

func TestParseDate_Failure(t *testing.T) {
	for _, s := range []string{"", "tomorrow", "2024-13-45", "15.01.2024"} {
		if _, ok := ParseDate(s); ok {
			t.Errorf("ParseDate(%q) succeeded", s)
		}
	}
}
