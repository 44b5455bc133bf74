// Package schedule exécute les tâches périodiques (rétention, vues agrégées,
// synthèse quotidienne) selon des expressions cron évaluées dans un fuseau fixe.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	spec     string
	schedule cron.Schedule
	fn       TaskFunc
	mu       sync.Mutex // une seule exécution à la fois par tâche
}

type Scheduler struct {
	clock  clockwork.Clock
	zone   *time.Location
	logger logrus.FieldLogger

	mu      sync.Mutex
	tasks   map[string]*task
	order   []string
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func New(clock clockwork.Clock, zone *time.Location, logger logrus.FieldLogger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if zone == nil {
		zone = time.UTC
	}
	return &Scheduler{clock: clock, zone: zone, logger: logger, tasks: make(map[string]*task)}
}

// Register ajoute une tâche; spec est une expression cron standard à 5 champs.
func (s *Scheduler) Register(name, spec string, fn TaskFunc) error {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("task %s: invalid schedule %q: %w", name, spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("task %s: scheduler already started", name)
	}
	if _, dup := s.tasks[name]; dup {
		return fmt.Errorf("task %s already registered", name)
	}
	s.tasks[name] = &task{name: name, spec: spec, schedule: sched, fn: fn}
	s.order = append(s.order, name)
	return nil
}

// Next retourne la prochaine échéance d'une tâche après t.
func (s *Scheduler) Next(name string, t time.Time) (time.Time, error) {
	s.mu.Lock()
	tk, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, fmt.Errorf("unknown task %s", name)
	}
	return tk.schedule.Next(t.In(s.zone)), nil
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range s.order {
		tk := s.tasks[name]
		s.wg.Add(1)
		go s.loop(ctx, tk)
	}
	s.logger.WithField("tasks", len(s.order)).Info("scheduler started")
}

func (s *Scheduler) loop(ctx context.Context, tk *task) {
	defer s.wg.Done()
	for {
		now := s.clock.Now()
		next := tk.schedule.Next(now.In(s.zone))
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(next.Sub(now)):
		}
		s.run(ctx, tk)
	}
}

func (s *Scheduler) run(ctx context.Context, tk *task) (err error) {
	tk.mu.Lock()
	defer tk.mu.Unlock()
	log := s.logger.WithField("task", tk.name)
	start := s.clock.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			log.WithError(err).Error("scheduled task panicked")
		}
	}()
	if err = tk.fn(ctx); err != nil {
		log.WithError(err).Warn("scheduled task failed")
		return err
	}
	log.WithField("duration", s.clock.Since(start).String()).Debug("scheduled task done")
	return nil
}

// RunNow exécute immédiatement une tâche enregistrée (CLI, tests).
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	tk, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %s", name)
	}
	return s.run(ctx, tk)
}

// Stop annule les attentes et attend la fin des tâches en cours.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
