package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/jose-valero/activity-rooms-bot/internal/domain"
)

// Runner ejecuta el cuerpo del job (ActivityService.GrantVoice).
type Runner interface {
	GrantVoice(ctx context.Context, p domain.VoiceJobPayload) error
}

// FailureHandler recibe los errores de las tasks; true si era un fallo tipado
// (VoiceTracker.HandleTaskFailure).
type FailureHandler interface {
	HandleTaskFailure(ctx context.Context, err error) bool
}

// Worker es el asynq.Server que procesa los jobs de voz.
type Worker struct {
	server *asynq.Server
	reg    *Scheduler
	run    Runner
	log    *zap.Logger
}

func NewWorker(redisOpt asynq.RedisConnOpt, concurrency int, reg *Scheduler, run Runner, onFail FailureHandler, log *zap.Logger) *Worker {
	log = log.Named("worker")
	w := &Worker{reg: reg, run: run, log: log}
	w.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{"default": 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			if onFail.HandleTaskFailure(ctx, err) {
				return
			}
			log.Warn("task failed", zap.String("type", task.Type()), zap.ByteString("payload", task.Payload()), zap.Error(err))
		}),
		Logger:   zapAdapter{log.Sugar()},
		LogLevel: asynq.WarnLevel,
	})
	return w
}

// Mux registra el handler; separado para poder probarlo sin servidor.
func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(domain.VoiceJobName, w.ProcessTask)
	return mux
}

func (w *Worker) Start() error {
	w.log.Info("worker starting")
	return w.server.Start(w.Mux())
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
	w.log.Info("worker stopped")
}

func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var ref taskRef
	if err := json.Unmarshal(t.Payload(), &ref); err != nil {
		return fmt.Errorf("decode task: %v: %w", err, asynq.SkipRetry)
	}

	job, ok, err := w.reg.Get(ctx, ref.Key)
	if err != nil {
		return err
	}
	if !ok {
		// cancelado mientras la task estaba en cola
		w.reg.forget(ref.Key)
		return nil
	}

	if err := w.run.GrantVoice(ctx, job.Payload); err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return nil
}

// zapAdapter cumple asynq.Logger.
type zapAdapter struct{ s *zap.SugaredLogger }

func (a zapAdapter) Debug(args ...interface{}) { a.s.Debug(args...) }
func (a zapAdapter) Info(args ...interface{})  { a.s.Info(args...) }
func (a zapAdapter) Warn(args ...interface{})  { a.s.Warn(args...) }
func (a zapAdapter) Error(args ...interface{}) { a.s.Error(args...) }
func (a zapAdapter) Fatal(args ...interface{}) { a.s.Fatal(args...) }

// NewEntryScheduler arma el *asynq.Scheduler que registra las entradas @every.
func NewEntryScheduler(redisOpt asynq.RedisConnOpt, log *zap.Logger) *asynq.Scheduler {
	log = log.Named("scheduler")
	return asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Logger:   zapAdapter{log.Sugar()},
		LogLevel: asynq.WarnLevel,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("enqueue failed", zap.Error(err))
			}
		},
	})
}

var _ entryScheduler = (*asynq.Scheduler)(nil)
