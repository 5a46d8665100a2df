// Package keyedqueue ejecuta trabajos en orden FIFO por clave.
//
// Cada clave cae siempre en el mismo worker (murmur3 % n), así los eventos de
// un mismo guild se procesan de a uno y hasta completarse, mientras que guilds
// en workers distintos avanzan en paralelo.
package keyedqueue

import (
	"sync"

	"github.com/twmb/murmur3"
	"go.uber.org/zap"
)

type Queue struct {
	lanes []chan func()
	log   *zap.Logger
	wg    sync.WaitGroup

	closeOnce sync.Once
}

func New(workers, queueSize int, log *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	q := &Queue{lanes: make([]chan func(), workers), log: log}
	for i := range q.lanes {
		q.lanes[i] = make(chan func(), queueSize)
	}
	return q
}

func (q *Queue) Start() {
	for i, lane := range q.lanes {
		q.wg.Add(1)
		go func(workerID int, jobs <-chan func()) {
			defer q.wg.Done()
			for job := range jobs {
				q.run(workerID, job)
			}
		}(i, lane)
	}
	q.log.Info("keyed queue started", zap.Int("workers", len(q.lanes)))
}

// un panic en un trabajo no tumba el worker
func (q *Queue) run(workerID int, job func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("job panic", zap.Int("worker", workerID), zap.Any("panic", r))
		}
	}()
	job()
}

// Submit encola el trabajo en la lane de la clave. Bloquea si la lane está llena.
func (q *Queue) Submit(key string, job func()) {
	q.lanes[q.lane(key)] <- job
}

func (q *Queue) lane(key string) int {
	return int(murmur3.Sum32([]byte(key)) % uint32(len(q.lanes)))
}

// Stop cierra las lanes y espera a que se vacíen.
func (q *Queue) Stop() {
	q.closeOnce.Do(func() {
		for _, lane := range q.lanes {
			close(lane)
		}
	})
	q.wg.Wait()
}
