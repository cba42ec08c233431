package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"backend_kredicrm/config"

	"github.com/robfig/cron/v3"
)

// Имена фоновых задач
const (
	JobPoolFix   = "pool_fix"
	JobRetention = "log_retention"
	JobSheetSync = "sheet_sync"
)

// jobTimeout предельное время одной задачи
const jobTimeout = 10 * time.Minute

// JobRun результат последнего запуска задачи
type JobRun struct {
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	LastRun    time.Time `json:"last_run"`
	LastResult string    `json:"last_result"`
	LastError  string    `json:"last_error,omitempty"`
	NextRun    time.Time `json:"next_run"`
}

type scheduledJob struct {
	schedule string
	run      func(ctx context.Context) (string, error)
	entryID  cron.EntryID
}

// Scheduler управляет фоновыми задачами по расписанию
type Scheduler struct {
	cron *cron.Cron
	cfg  config.JobsConfig

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	history map[string]JobRun
}

// NewScheduler регистрирует задачи: исправление пула, очистку журнала и синхронизацию таблицы
func NewScheduler(cfg config.JobsConfig, leads *LeadService, activity *ActivityService, imports *ImportService, retentionMonths int) *Scheduler {
	s := &Scheduler{
		cron:    cron.New(),
		cfg:     cfg,
		jobs:    map[string]*scheduledJob{},
		history: map[string]JobRun{},
	}

	s.jobs[JobPoolFix] = &scheduledJob{
		schedule: cfg.PoolFixSchedule,
		run: func(ctx context.Context) (string, error) {
			fixed, err := leads.FixPoolConsistency(ctx)
			return fmt.Sprintf("освобождено %d", fixed), err
		},
	}
	s.jobs[JobRetention] = &scheduledJob{
		schedule: cfg.RetentionSchedule,
		run: func(ctx context.Context) (string, error) {
			deleted, err := activity.CleanupOldLogs(ctx, retentionMonths)
			return fmt.Sprintf("удалено %d", deleted), err
		},
	}
	if imports != nil && imports.SheetConfigured() {
		s.jobs[JobSheetSync] = &scheduledJob{
			schedule: cfg.SheetSyncSchedule,
			run: func(ctx context.Context) (string, error) {
				res, err := imports.SyncSheet(ctx)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("новых %d, обновлено %d", res.Imported, res.Updated), nil
			},
		}
	}
	return s
}

// Start добавляет задачи в cron и запускает планировщик
func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		log.Println("⚠️ Фоновые задачи отключены")
		return nil
	}

	for _, name := range s.JobNames() {
		job := s.jobs[name]
		jobName := name
		id, err := s.cron.AddFunc(job.schedule, func() {
			if _, err := s.RunJob(context.Background(), jobName); err != nil {
				log.Printf("❌ Задача %s завершилась с ошибкой: %v", jobName, err)
			}
		})
		if err != nil {
			return fmt.Errorf("некорректное расписание задачи %s (%q): %w", name, job.schedule, err)
		}
		job.entryID = id
		log.Printf("⏰ Задача %s: %s", name, job.schedule)
	}

	s.cron.Start()
	log.Println("✅ Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждет завершения текущих задач
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Планировщик задач остановлен")
}

// ErrUnknownJob задача не зарегистрирована
var ErrUnknownJob = errors.New("неизвестная задача")

// RunJob выполняет задачу немедленно и сохраняет результат
func (s *Scheduler) RunJob(ctx context.Context, name string) (string, error) {
	job, ok := s.jobs[name]
	if !ok {
		return "", ErrUnknownJob
	}

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	started := time.Now()
	result, err := job.run(ctx)

	run := JobRun{Name: name, Schedule: job.schedule, LastRun: started, LastResult: result}
	if err != nil {
		run.LastError = err.Error()
	} else {
		log.Printf("✅ Задача %s: %s (%v)", name, result, time.Since(started).Round(time.Millisecond))
	}

	s.mu.Lock()
	s.history[name] = run
	s.mu.Unlock()
	return result, err
}

// JobNames имена зарегистрированных задач в алфавитном порядке
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status состояние задач для панели администратора
func (s *Scheduler) Status() []JobRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobRun, 0, len(s.jobs))
	for _, name := range s.JobNames() {
		job := s.jobs[name]
		run, ok := s.history[name]
		if !ok {
			run = JobRun{Name: name, Schedule: job.schedule}
		}
		if job.entryID != 0 {
			run.NextRun = s.cron.Entry(job.entryID).Next
		}
		out = append(out, run)
	}
	return out
}
