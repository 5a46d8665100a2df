// Package jobs guarda los jobs recurrentes de voz: un registro en un hash de
// Redis (la fuente de verdad del payload) más una entrada del scheduler de
// asynq por job. La task encolada sólo lleva la key; el worker lee el payload
// actual del registro, así que un cambio de canal no re-registra nada.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// RegistryKey es el hash key -> RecurringJob (JSON).
const RegistryKey = "recurring-jobs"

const taskTimeout = 30 * time.Second

var ErrJobNotFound = errors.New("recurring job not found")

// entryScheduler es la parte de *asynq.Scheduler que usamos.
type entryScheduler interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
	Unregister(entryID string) error
}

// taskRef es el payload de la task de asynq.
type taskRef struct {
	Key string `json:"key"`
}

type Scheduler struct {
	rdb   redis.UniversalClient
	sched entryScheduler
	log   *zap.Logger

	mu      sync.Mutex
	entries map[string]string // key -> entry id registrado en este proceso
}

func NewScheduler(rdb redis.UniversalClient, sched entryScheduler, log *zap.Logger) *Scheduler {
	return &Scheduler{rdb: rdb, sched: sched, log: log.Named("jobs"), entries: map[string]string{}}
}

func cronSpec(interval time.Duration) string {
	secs := int64(interval / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("@every %ds", secs)
}

func (s *Scheduler) register(name, key string, interval time.Duration) (string, error) {
	raw, err := json.Marshal(taskRef{Key: key})
	if err != nil {
		return "", err
	}
	task := asynq.NewTask(name, raw, asynq.MaxRetry(0), asynq.Timeout(taskTimeout))
	return s.sched.Register(cronSpec(interval), task)
}

func (s *Scheduler) unregisterLocked(key string) {
	id, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	if err := s.sched.Unregister(id); err != nil {
		s.log.Warn("unregister entry", zap.String("key", key), zap.String("entry", id), zap.Error(err))
	}
}

// CreateRecurring registra el job; si ya había uno con la misma key lo reemplaza.
func (s *Scheduler) CreateRecurring(ctx context.Context, name string, payload domain.VoiceJobPayload, interval time.Duration, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unregisterLocked(key)
	entryID, err := s.register(name, key, interval)
	if err != nil {
		return fmt.Errorf("register %s: %w", key, err)
	}
	s.entries[key] = entryID

	job := domain.RecurringJob{Key: key, Name: name, Payload: payload, IntervalMS: interval.Milliseconds(), EntryID: entryID}
	if err := s.put(ctx, job); err != nil {
		s.unregisterLocked(key)
		return err
	}
	s.log.Debug("job created", zap.String("key", key), zap.String("entry", entryID), zap.Duration("every", interval))
	return nil
}

// Cancel es idempotente.
func (s *Scheduler) Cancel(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.unregisterLocked(key)
	if err := s.rdb.HDel(ctx, RegistryKey, key).Err(); err != nil {
		return fmt.Errorf("registry del %s: %w", key, err)
	}
	return nil
}

func (s *Scheduler) UpdatePayload(ctx context.Context, key string, payload domain.VoiceJobPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}
	job.Payload = payload
	return s.put(ctx, job)
}

func (s *Scheduler) Get(ctx context.Context, key string) (domain.RecurringJob, bool, error) {
	raw, err := s.rdb.HGet(ctx, RegistryKey, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.RecurringJob{}, false, nil
	}
	if err != nil {
		return domain.RecurringJob{}, false, fmt.Errorf("registry get %s: %w", key, err)
	}
	var job domain.RecurringJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return domain.RecurringJob{}, false, fmt.Errorf("registry decode %s: %w", key, err)
	}
	return job, true, nil
}

func (s *Scheduler) List(ctx context.Context) ([]domain.RecurringJob, error) {
	return listRegistry(ctx, s.rdb)
}

// Restore vuelve a registrar en asynq todo lo que hay en el registro.
// Se llama una vez al arrancar, antes de empezar a procesar eventos.
func (s *Scheduler) Restore(ctx context.Context) (int, error) {
	jobs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, job := range jobs {
		s.unregisterLocked(job.Key)
		entryID, err := s.register(job.Name, job.Key, job.Interval())
		if err != nil {
			s.log.Warn("restore job", zap.String("key", job.Key), zap.Error(err))
			continue
		}
		s.entries[job.Key] = entryID
		job.EntryID = entryID
		if err := s.put(ctx, job); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// forget saca la entrada local de un job que ya no está en el registro
// (por ejemplo, lo borró el janitor).
func (s *Scheduler) forget(key string) {
	s.mu.Lock()
	s.unregisterLocked(key)
	s.mu.Unlock()
}

func (s *Scheduler) put(ctx context.Context, job domain.RecurringJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, RegistryKey, job.Key, raw).Err(); err != nil {
		return fmt.Errorf("registry put %s: %w", job.Key, err)
	}
	return nil
}

func listRegistry(ctx context.Context, rdb redis.UniversalClient) ([]domain.RecurringJob, error) {
	all, err := rdb.HGetAll(ctx, RegistryKey).Result()
	if err != nil {
		return nil, fmt.Errorf("registry list: %w", err)
	}
	out := make([]domain.RecurringJob, 0, len(all))
	for _, raw := range all {
		var job domain.RecurringJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// PruneRegistry borra entradas ilegibles o cuya key no es la canónica del
// miembro. Lo usa el janitor; no necesita asynq.
func PruneRegistry(ctx context.Context, rdb redis.UniversalClient) (int, error) {
	all, err := rdb.HGetAll(ctx, RegistryKey).Result()
	if err != nil {
		return 0, fmt.Errorf("registry list: %w", err)
	}
	var stale []string
	for key, raw := range all {
		var job domain.RecurringJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			stale = append(stale, key)
			continue
		}
		if key != domain.VoiceJobKey(job.Payload.GuildID, job.Payload.MemberID) {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := rdb.HDel(ctx, RegistryKey, stale...).Err(); err != nil {
		return 0, fmt.Errorf("registry prune: %w", err)
	}
	return len(stale), nil
}
