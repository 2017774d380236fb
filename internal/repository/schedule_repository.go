package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"snapbot/internal/models"
)

var (
	ErrScheduleIndexOutOfRange = errors.New("schedule index out of range")
	ErrInvalidSchedule         = errors.New("invalid scheduled job")
)

// schedulesDocument: user-id -> accountKey -> упорядоченный список заданий
type schedulesDocument map[string]map[string][]*models.ScheduledJob

// ScheduleRepository - хранилище ежедневных заданий (schedules.json)
type ScheduleRepository struct {
	storage Storage

	mu   sync.RWMutex
	jobs map[int64]map[string][]*models.ScheduledJob
}

// NewScheduleRepository создает репозиторий заданий
func NewScheduleRepository(storage Storage) *ScheduleRepository {
	return &ScheduleRepository{
		storage: storage,
		jobs:    make(map[int64]map[string][]*models.ScheduledJob),
	}
}

// Load загружает документ заданий.
// Владелец и аккаунт берутся из ключей документа, а не из записи.
func (r *ScheduleRepository) Load(ctx context.Context) error {
	var doc schedulesDocument
	if _, err := loadDocument(ctx, r.storage, SchedulesDocument, &doc); err != nil {
		return err
	}

	loaded := make(map[int64]map[string][]*models.ScheduledJob, len(doc))
	for userKey, byAccount := range doc {
		userID, err := strconv.ParseInt(userKey, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: user id %q", ErrCorruptDocument, SchedulesDocument, userKey)
		}
		loaded[userID] = make(map[string][]*models.ScheduledJob, len(byAccount))
		for accountKey, list := range byAccount {
			jobs := make([]*models.ScheduledJob, 0, len(list))
			for _, job := range list {
				if job == nil || !job.Type.Schedulable() {
					return fmt.Errorf("%w: %s: %s/%s", ErrCorruptDocument, SchedulesDocument, userKey, accountKey)
				}
				job.OwnerUserID = userID
				job.AccountKey = accountKey
				jobs = append(jobs, job)
			}
			loaded[userID][accountKey] = jobs
		}
	}

	r.mu.Lock()
	r.jobs = loaded
	r.mu.Unlock()
	return nil
}

// Append добавляет задание в конец списка аккаунта владельца
func (r *ScheduleRepository) Append(ctx context.Context, job *models.ScheduledJob) error {
	if job == nil || job.AccountKey == "" || !job.Type.Schedulable() {
		return ErrInvalidSchedule
	}
	if _, _, err := job.HourMinute(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byAccount := r.jobs[job.OwnerUserID]
	if byAccount == nil {
		byAccount = make(map[string][]*models.ScheduledJob)
		r.jobs[job.OwnerUserID] = byAccount
	}
	before := byAccount[job.AccountKey]
	stored := cloneJob(job)
	byAccount[job.AccountKey] = append(before[:len(before):len(before)], stored)

	if err := r.saveLocked(ctx); err != nil {
		byAccount[job.AccountKey] = before
		return err
	}
	return nil
}

// RemoveAt удаляет задание по индексу; оставшиеся задания сдвигаются
func (r *ScheduleRepository) RemoveAt(ctx context.Context, userID int64, accountKey string, index int) (*models.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := r.jobs[userID][accountKey]
	if index < 0 || index >= len(before) {
		return nil, ErrScheduleIndexOutOfRange
	}

	removed := before[index]
	after := make([]*models.ScheduledJob, 0, len(before)-1)
	after = append(after, before[:index]...)
	after = append(after, before[index+1:]...)
	r.jobs[userID][accountKey] = after

	if err := r.saveLocked(ctx); err != nil {
		r.jobs[userID][accountKey] = before
		return nil, err
	}
	return cloneJob(removed), nil
}

// List возвращает задания аккаунта пользователя по порядку
func (r *ScheduleRepository) List(userID int64, accountKey string) []*models.ScheduledJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.jobs[userID][accountKey]
	result := make([]*models.ScheduledJob, len(list))
	for i, job := range list {
		result[i] = cloneJob(job)
	}
	return result
}

// All возвращает все задания всех пользователей (для восстановления таймеров при старте)
func (r *ScheduleRepository) All() []*models.ScheduledJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.ScheduledJob
	for _, byAccount := range r.jobs {
		for _, list := range byAccount {
			for _, job := range list {
				result = append(result, cloneJob(job))
			}
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].OwnerUserID != result[j].OwnerUserID {
			return result[i].OwnerUserID < result[j].OwnerUserID
		}
		return result[i].AccountKey < result[j].AccountKey
	})
	return result
}

// saveLocked сохраняет документ; вызывается под r.mu
func (r *ScheduleRepository) saveLocked(ctx context.Context) error {
	doc := make(schedulesDocument, len(r.jobs))
	for userID, byAccount := range r.jobs {
		doc[strconv.FormatInt(userID, 10)] = byAccount
	}

	data, err := encodeDocument(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", SchedulesDocument, err)
	}
	return r.storage.Save(ctx, SchedulesDocument, data)
}

func cloneJob(j *models.ScheduledJob) *models.ScheduledJob {
	c := *j
	c.Params = j.Params.Clone()
	return &c
}
