package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScheduledJob - ежедневный запрос, привязанный к аккаунту пользователя.
// TimeOfDay хранится в формате HH:MM и интерпретируется в UTC.
type ScheduledJob struct {
	ID          uuid.UUID `json:"id"`
	Type        QueryType `json:"type"`
	Params      Params    `json:"params,omitempty"`
	TimeOfDay   string    `json:"timeOfDay"`
	OwnerUserID int64     `json:"ownerUserId"`
	AccountKey  string    `json:"accountKey"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewScheduledJob создает задание с новым идентификатором
func NewScheduledJob(userID int64, accountKey string, q QueryType, params Params, timeOfDay string) *ScheduledJob {
	return &ScheduledJob{
		ID:          uuid.New(),
		Type:        q,
		Params:      params.Clone(),
		TimeOfDay:   timeOfDay,
		OwnerUserID: userID,
		AccountKey:  accountKey,
		CreatedAt:   time.Now().UTC(),
	}
}

// HourMinute разбирает TimeOfDay, ошибка если формат не HH:MM
func (j *ScheduledJob) HourMinute() (int, int, error) {
	var h, m int
	if _, err := fmt.Sscanf(j.TimeOfDay, "%d:%d", &h, &m); err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q: %w", j.TimeOfDay, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", j.TimeOfDay)
	}
	return h, m, nil
}

// Describe возвращает строку для списка расписаний: "<Label> - <params> HH:MM"
func (j *ScheduledJob) Describe() string {
	var b strings.Builder
	b.WriteString(j.Type.Label())
	b.WriteString(" - ")
	for _, name := range j.Type.ParamOrder() {
		if v := j.Params[name]; v != "" {
			b.WriteString(v)
			b.WriteByte(' ')
		}
	}
	b.WriteString(j.TimeOfDay)
	return b.String()
}
