// Package scheduler держит ежедневные таймеры заданий.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"snapbot/internal/metrics"
	"snapbot/internal/models"
)

var ErrInvalidJob = errors.New("invalid scheduled job")

// RunFunc выполняется при срабатывании задания
type RunFunc func(ctx context.Context)

// Scheduler - обертка над cron в UTC: один таймер на задание,
// у каждого таймера есть хэндл отмены.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[uuid.UUID]cron.EntryID
}

// New создает планировщик; таймеры не срабатывают до Start
func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

// Spec возвращает cron выражение "MM HH * * *" для времени задания
func Spec(job *models.ScheduledJob) (string, error) {
	h, m, err := job.HourMinute()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return fmt.Sprintf("%d %d * * *", m, h), nil
}

// Arm взводит ежедневный таймер задания. Повторный Arm того же задания
// заменяет таймер, так что на задание всегда не больше одного таймера.
func (s *Scheduler) Arm(job *models.ScheduledJob, fn RunFunc) error {
	if job == nil || fn == nil {
		return ErrInvalidJob
	}
	spec, err := Spec(job)
	if err != nil {
		return err
	}

	jobID := job.ID
	entryID, err := s.cron.AddFunc(spec, func() { fn(s.ctx) })
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	s.mu.Lock()
	if prev, ok := s.entries[jobID]; ok {
		s.cron.Remove(prev)
	}
	s.entries[jobID] = entryID
	armed := len(s.entries)
	s.mu.Unlock()

	metrics.SetScheduledJobs(armed)
	s.logger.Debug("job armed",
		zap.String("job_id", jobID.String()),
		zap.String("spec", spec),
	)
	return nil
}

// Cancel снимает таймер задания; false если таймера не было
func (s *Scheduler) Cancel(jobID uuid.UUID) bool {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	if ok {
		delete(s.entries, jobID)
	}
	armed := len(s.entries)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	metrics.SetScheduledJobs(armed)
	s.logger.Debug("job cancelled", zap.String("job_id", jobID.String()))
	return true
}

// IsArmed проверяет что у задания есть таймер
func (s *Scheduler) IsArmed(jobID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jobID]
	return ok
}

// Armed возвращает количество взведенных таймеров
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// NextRun возвращает ближайшее срабатывание задания после from
func (s *Scheduler) NextRun(jobID uuid.UUID, from time.Time) (time.Time, bool) {
	s.mu.Lock()
	entryID, ok := s.entries[jobID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(entryID)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Schedule.Next(from.UTC()), true
}

// Start запускает таймеры в фоне
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("armed", s.Armed()))
}

// Stop останавливает таймеры и ждет выполняющиеся задания до отмены ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()

	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out, cancelling running jobs")
		return ctx.Err()
	}
}

// cronLogger направляет логи cron (в том числе перехваченные паники) в zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
