package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseInputDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"обычная дата", "2024-03-05 14:30", "2024-03-05T14:30:00", false},
		{"пробелы по краям", "  2024-12-31 23:59 ", "2024-12-31T23:59:00", false},
		{"без времени", "2024-03-05", "", true},
		{"iso формат", "2024-03-05T14:30:00", "", true},
		{"несуществующий день", "2024-02-30 10:00", "", true},
		{"мусор", "yesterday", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInputDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidDate) {
				t.Errorf("ожидалась ErrInvalidDate, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"09:30", "09:30", false},
		{"9:30", "09:30", false},
		{"23:59", "23:59", false},
		{"00:00", "00:00", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"1230", "", true},
		{"noon", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidTimeOfDay) {
				t.Errorf("ожидалась ErrInvalidTimeOfDay, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFileTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 7, 123_000_000, time.FixedZone("X", 3*3600))
	if got, want := FileTimestamp(ts), "2024-03-05T11-30-07-123Z"; got != want {
		t.Errorf("FileTimestamp() = %q, want %q", got, want)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input    time.Duration
		expected string
	}{
		{45 * time.Second, "45s"},
		{5*time.Minute + 30*time.Second, "5m30s"},
		{2*time.Hour + 15*time.Minute, "2h15m0s"},
		{3*24*time.Hour + 5*time.Hour, "3d5h"},
		{48 * time.Hour, "2d"},
		{-45 * time.Second, "45s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := FormatDuration(tt.input); got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
