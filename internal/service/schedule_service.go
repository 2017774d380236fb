package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"snapbot/internal/metrics"
	"snapbot/internal/models"
	"snapbot/internal/repository"
	"snapbot/pkg/utils"
)

var (
	ErrNotSchedulable          = errors.New("query cannot be scheduled")
	ErrScheduleIndexOutOfRange = repository.ErrScheduleIndexOutOfRange
	ErrNoSchedules             = errors.New("no schedule found")
)

// ScheduleChangedEvent - создание или удаление задания
type ScheduleChangedEvent struct {
	Action     string `json:"action"` // created | removed
	JobID      string `json:"jobId"`
	UserID     int64  `json:"userId"`
	AccountKey string `json:"accountKey"`
	Query      string `json:"query"`
	TimeOfDay  string `json:"timeOfDay"`
}

// JobRunEvent - срабатывание задания
type JobRunEvent struct {
	JobID      string `json:"jobId"`
	UserID     int64  `json:"userId"`
	AccountKey string `json:"accountKey"`
	Query      string `json:"query"`
	Result     string `json:"result"`
}

// ScheduleService - ежедневные задания: хранение и таймеры
type ScheduleService struct {
	store     ScheduleStore
	accounts  AccountStore
	queries   *QueryService
	scheduler JobScheduler
	notifier  Notifier
	events    EventPublisher
	logger    *zap.Logger
}

// NewScheduleService создает сервис расписаний
func NewScheduleService(
	store ScheduleStore,
	accounts AccountStore,
	queries *QueryService,
	sched JobScheduler,
	notifier Notifier,
	logger *zap.Logger,
) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		store:     store,
		accounts:  accounts,
		queries:   queries,
		scheduler: sched,
		notifier:  notifier,
		events:    nopPublisher{},
		logger:    logger,
	}
}

// SetEventPublisher подключает публикацию событий
func (s *ScheduleService) SetEventPublisher(p EventPublisher) {
	if p != nil {
		s.events = p
	}
}

// Create сохраняет задание и взводит ровно один таймер
func (s *ScheduleService) Create(ctx context.Context, userID int64, accountKey string, q models.QueryType, params models.Params, timeOfDay string) (*models.ScheduledJob, error) {
	if !q.Schedulable() {
		return nil, fmt.Errorf("%w: %s", ErrNotSchedulable, q)
	}
	timeOfDay, err := utils.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, err
	}

	job := models.NewScheduledJob(userID, accountKey, q, params, timeOfDay)
	if err := s.store.Append(ctx, job); err != nil {
		return nil, err
	}

	if err := s.scheduler.Arm(job, s.runner(job)); err != nil {
		// таймер не взвелся: убираем только что добавленную запись
		if jobs := s.store.List(userID, accountKey); len(jobs) > 0 && jobs[len(jobs)-1].ID == job.ID {
			if _, rmErr := s.store.RemoveAt(ctx, userID, accountKey, len(jobs)-1); rmErr != nil {
				s.logger.Error("failed to roll back schedule", utils.JobID(job.ID.String()), zap.Error(rmErr))
			}
		}
		return nil, err
	}

	s.logger.Info("schedule created",
		utils.UserID(userID),
		utils.AccountKey(accountKey),
		utils.JobID(job.ID.String()),
		utils.Query(string(q)),
		zap.String("time_of_day", timeOfDay),
	)
	s.publishChange("created", job)
	return job, nil
}

// Remove удаляет задание по индексу в списке аккаунта и снимает его таймер
func (s *ScheduleService) Remove(ctx context.Context, userID int64, accountKey string, index int) (*models.ScheduledJob, error) {
	removed, err := s.store.RemoveAt(ctx, userID, accountKey, index)
	if err != nil {
		return nil, err
	}
	if !s.scheduler.Cancel(removed.ID) {
		s.logger.Warn("removed job had no armed timer", utils.JobID(removed.ID.String()))
	}

	s.logger.Info("schedule removed",
		utils.UserID(userID),
		utils.AccountKey(accountKey),
		utils.JobID(removed.ID.String()),
	)
	s.publishChange("removed", removed)
	return removed, nil
}

// List возвращает задания аккаунта по порядку
func (s *ScheduleService) List(userID int64, accountKey string) []*models.ScheduledJob {
	return s.store.List(userID, accountKey)
}

// Rehydrate взводит таймеры для всех сохраненных заданий (при старте).
// Задания с ошибкой пропускаются и логируются.
func (s *ScheduleService) Rehydrate(ctx context.Context) int {
	armed := 0
	for _, job := range s.store.All() {
		if ctx.Err() != nil {
			break
		}
		if err := s.scheduler.Arm(job, s.runner(job)); err != nil {
			s.logger.Error("failed to arm persisted job",
				utils.JobID(job.ID.String()),
				utils.UserID(job.OwnerUserID),
				zap.Error(err),
			)
			continue
		}
		armed++
	}
	s.logger.Info("schedules rehydrated", zap.Int("armed", armed))
	return armed
}

// runner возвращает функцию таймера; параметры задания заморожены на момент создания
func (s *ScheduleService) runner(job *models.ScheduledJob) func(ctx context.Context) {
	frozen := *job
	frozen.Params = job.Params.Clone()
	return func(ctx context.Context) {
		if err := s.RunJob(ctx, &frozen); err != nil {
			s.logger.Warn("scheduled job failed",
				utils.JobID(frozen.ID.String()),
				utils.UserID(frozen.OwnerUserID),
				zap.Error(err),
			)
		}
	}
}

// RunJob выполняет задание в push режиме. Аккаунт берется в момент срабатывания,
// пропавший аккаунт сообщается владельцу личным сообщением.
func (s *ScheduleService) RunJob(ctx context.Context, job *models.ScheduledJob) error {
	result := metrics.ResultSuccess
	defer func() {
		metrics.RecordJobRun(string(job.Type), result)
		s.events.Publish(EventJobRun, JobRunEvent{
			JobID:      job.ID.String(),
			UserID:     job.OwnerUserID,
			AccountKey: job.AccountKey,
			Query:      string(job.Type),
			Result:     result,
		})
	}()

	account, err := s.accounts.Get(job.OwnerUserID, job.AccountKey)
	if err != nil {
		result = metrics.ResultError
		text := fmt.Sprintf("Scheduled %s at %s was skipped: account %s no longer exists.", job.Type.Label(), job.TimeOfDay, job.AccountKey)
		if sendErr := s.notifier.SendText(ctx, job.OwnerUserID, text); sendErr != nil {
			s.logger.Warn("failed to notify owner", utils.UserID(job.OwnerUserID), zap.Error(sendErr))
		}
		return fmt.Errorf("resolve account %s: %w", job.AccountKey, err)
	}

	err = s.queries.Deliver(ctx, job.OwnerUserID, QueryRequest{
		UserID:  job.OwnerUserID,
		Account: account,
		Type:    job.Type,
		Params:  job.Params.Clone(),
		Mode:    metrics.ModePush,
	})
	switch {
	case errors.Is(err, ErrNoData):
		result = metrics.ResultNoData
		return nil
	case err != nil:
		result = metrics.ResultError
		return err
	}
	return nil
}

// Armed возвращает количество взведенных таймеров
func (s *ScheduleService) Armed() int {
	return s.scheduler.Armed()
}

func (s *ScheduleService) publishChange(action string, job *models.ScheduledJob) {
	s.events.Publish(EventScheduleChanged, ScheduleChangedEvent{
		Action:     action,
		JobID:      job.ID.String(),
		UserID:     job.OwnerUserID,
		AccountKey: job.AccountKey,
		Query:      string(job.Type),
		TimeOfDay:  job.TimeOfDay,
	})
}
