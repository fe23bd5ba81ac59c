// Copyright (C) 2025 chatdocu.net <dev@chatdocu.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a unit of scheduled work. The context is cancelled when the
// job is replaced or the scheduler stops; a job interrupted mid-run
// must simply leave its remaining work for the next run.
type Job func(ctx context.Context) error

// Scheduler runs named background jobs. One-shot jobs use a REPLACE
// policy (re-scheduling a name cancels the previous task), periodic
// jobs use a KEEP policy (re-scheduling an existing name is a no-op).
type Scheduler struct {
	logger *zap.SugaredLogger

	mu      sync.Mutex
	tasks   map[string]*task
	stopped bool
	wg      sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
}

func NewScheduler(logger *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

// RunOnce starts job immediately under name, cancelling and replacing
// any task already registered with the same name.
func (s *Scheduler) RunOnce(name string, job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if old, ok := s.tasks[name]; ok {
		old.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel}
	s.tasks[name] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.forget(name, t)

		if err := job(ctx); err != nil {
			s.logger.Warnf("job %s failed: %v", name, err)
		}
	}()
}

// RunPeriodic starts job under name on a fixed interval. If a task
// with this name is already scheduled it is kept untouched.
func (s *Scheduler) RunPeriodic(name string, every time.Duration, job Job) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, ok := s.tasks[name]; ok {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel}
	s.tasks[name] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.forget(name, t)

		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := job(ctx); err != nil {
					s.logger.Warnf("job %s failed: %v", name, err)
				}
			}
		}
	}()
}

// Scheduled reports whether a task is currently registered under name.
func (s *Scheduler) Scheduled(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[name]
	return ok
}

// Stop cancels every task and waits for them to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for _, t := range s.tasks {
		t.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// forget drops the task from the registry unless it has already been
// replaced by a newer one under the same name.
func (s *Scheduler) forget(name string, t *task) {
	s.mu.Lock()
	if cur, ok := s.tasks[name]; ok && cur == t {
		delete(s.tasks, name)
	}
	s.mu.Unlock()
}
