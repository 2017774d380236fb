package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Форматы дат, которые вводит пользователь и которые ожидает биржа
const (
	// InputDateLayout - YYYY-MM-DD HH:mm, UTC
	InputDateLayout = "2006-01-02 15:04"
	// ExchangeDateLayout - ISO-8601 без часового пояса
	ExchangeDateLayout = "2006-01-02T15:04:05"
	// TimeOfDayLayout - HH:MM, 24 часа
	TimeOfDayLayout = "15:04"
	// PingLayout - формат времени в ответе /ping
	PingLayout = "02-01-2006 15:04:05"
)

var (
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD HH:MM")
	ErrInvalidTimeOfDay = errors.New("invalid time, expected HH:MM (24 hours)")
)

// ParseInputDate разбирает "2024-03-05 14:30" в UTC и возвращает "2024-03-05T14:30:00"
func ParseInputDate(value string) (string, error) {
	t, err := time.ParseInLocation(InputDateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t.Format(ExchangeDateLayout), nil
}

// ParseTimeOfDay нормализует время суток: "9:05" -> "09:05"
func ParseTimeOfDay(value string) (string, error) {
	t, err := time.Parse(TimeOfDayLayout, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeOfDay, value)
	}
	return t.Format(TimeOfDayLayout), nil
}

// FileTimestamp возвращает ISO-8601 время в UTC с миллисекундами,
// где ':' и '.' заменены на '-': 2024-03-05T14-30-00-000Z
func FileTimestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// FormatDuration форматирует продолжительность: "45s", "5m30s", "3d5h"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	d = d.Truncate(time.Second)

	days := int(d.Hours()) / 24
	if days > 0 {
		hours := int(d.Hours()) % 24
		if hours > 0 {
			return fmt.Sprintf("%dd%dh", days, hours)
		}
		return fmt.Sprintf("%dd", days)
	}
	return d.String()
}
