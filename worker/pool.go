package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrPoolStopped = errors.New("worker pool stopped")

// Stats est un instantané de la file.
type Stats struct {
	Queued    int
	Running   int
	Completed int64
	Failed    int64
}

// Pool est une file FIFO en mémoire vidée par N workers. Les jobs encore en file
// à l'arrêt restent pending dans le ledger et sont recyclés au démarrage suivant.
type Pool struct {
	runner  JobRunner
	workers int
	logger  logrus.FieldLogger

	mu      sync.Mutex
	queue   []Job
	running map[string]time.Time
	stopped bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
}

func NewPool(runner JobRunner, workers int, logger logrus.FieldLogger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		runner:  runner,
		workers: workers,
		logger:  logger,
		running: make(map[string]time.Time),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

// Submit ajoute un job en fin de file.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrPoolStopped
	}
	p.queue = append(p.queue, job)
	p.mu.Unlock()
	p.signal()
	return nil
}

func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// next retire le plus ancien job de la file.
func (p *Pool) next() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return Job{}, false
	}
	job := p.queue[0]
	p.queue = p.queue[1:]
	p.running[job.RequestID] = time.Now()
	more := len(p.queue) > 0
	if more {
		p.signal()
	}
	return job, true
}

// Start lance les workers; ctx est transmis à chaque job.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.loop(ctx)
	}
}

func (p *Pool) loop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-p.quit:
			return
		case <-ctx.Done():
			return
		default:
		}
		job, ok := p.next()
		if !ok {
			select {
			case <-p.quit:
				return
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}
		p.execute(ctx, job)
	}
}

func (p *Pool) execute(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			p.failed.Add(1)
			p.logger.WithField("request_id", job.RequestID).Errorf("export panic: %v", rec)
		}
		p.mu.Lock()
		delete(p.running, job.RequestID)
		p.mu.Unlock()
	}()
	if err := p.runner.Run(ctx, job); err != nil {
		p.failed.Add(1)
		p.logger.WithField("request_id", job.RequestID).WithError(err).Warn("export job failed")
		return
	}
	p.completed.Add(1)
}

// Stop n'accepte plus de jobs et attend la fin des jobs en cours.
// Retourne le nombre de jobs restés en file.
func (p *Pool) Stop() int {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0
	}
	p.stopped = true
	close(p.quit)
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	left := len(p.queue)
	p.mu.Unlock()
	if left > 0 {
		p.logger.WithField("queued", left).Warn("worker pool stopped with queued jobs")
	}
	return left
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Queued:    len(p.queue),
		Running:   len(p.running),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
