package service

import (
	"context"

	"github.com/google/uuid"

	"snapbot/internal/exchange"
	"snapbot/internal/export"
	"snapbot/internal/models"
	"snapbot/internal/repository"
	"snapbot/internal/scheduler"
)

// AccountStore - хранилище аккаунтов пользователей
type AccountStore interface {
	Append(ctx context.Context, userID int64, account *models.Account) (*models.Account, error)
	Select(ctx context.Context, userID int64, key string) (*models.Account, error)
	Get(userID int64, key string) (*models.Account, error)
	List(userID int64) []*models.Account
	Selected(userID int64) (*models.Account, error)
}

// ScheduleStore - хранилище ежедневных заданий
type ScheduleStore interface {
	Append(ctx context.Context, job *models.ScheduledJob) error
	RemoveAt(ctx context.Context, userID int64, accountKey string, index int) (*models.ScheduledJob, error)
	List(userID int64, accountKey string) []*models.ScheduledJob
	All() []*models.ScheduledJob
}

// SheetWriter записывает листы в файл выгрузки
type SheetWriter interface {
	Write(userID int64, prefix string, sheets []export.Sheet) (*export.Artifact, error)
}

// JobScheduler держит таймеры заданий
type JobScheduler interface {
	Arm(job *models.ScheduledJob, fn scheduler.RunFunc) error
	Cancel(jobID uuid.UUID) bool
	Armed() int
}

// Notifier отправляет сообщения пользователю в чат
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, path, caption string) error
}

// EventPublisher публикует события для подписчиков /ws/events
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

// Проверяем, что реальные реализации подходят под интерфейсы
var (
	_ AccountStore    = (*repository.AccountRepository)(nil)
	_ ScheduleStore   = (*repository.ScheduleRepository)(nil)
	_ SheetWriter     = (*export.Writer)(nil)
	_ JobScheduler    = (*scheduler.Scheduler)(nil)
	_ exchange.Client = (*exchange.Dydx)(nil)
)

// nopPublisher используется когда хаб событий не подключен
type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// Типы событий
const (
	EventAccountLinked   = "accountLinked"
	EventQueryExecuted   = "queryExecuted"
	EventJobRun          = "jobRun"
	EventScheduleChanged = "scheduleChanged"
)
