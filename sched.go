//----------------------------------------------------------------------
// This file is part of apnode.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// apnode is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// apnode is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package apnode

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

// Error messages
var (
	ErrTaskTableFull = errors.New("task table full")
	ErrNoTask        = errors.New("no such task")
	ErrNilTask       = errors.New("nil task")
)

// idle period if no suspended task has a deadline
const defaultIdle = 10 * time.Millisecond

//----------------------------------------------------------------------

// TaskState of a spawned task.
type TaskState uint8

// Task states
const (
	TaskReady     TaskState = iota // waiting for its turn
	TaskSuspended                  // waiting for a timer or signal
	TaskCompleted                  // finished, never polled again
)

func (s TaskState) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskSuspended:
		return "suspended"
	case TaskCompleted:
		return "completed"
	}
	return "unknown"
}

// Task is a cooperative unit of work. Poll runs the task up to its next
// suspension point and returns the condition to resume it on. A Poll that
// never returns starves every other task.
type Task interface {
	Poll(now time.Time) Wait
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(now time.Time) Wait

// Poll calls f(now).
func (f TaskFunc) Poll(now time.Time) Wait { return f(now) }

//----------------------------------------------------------------------

type waitKind uint8

const (
	waitYield waitKind = iota
	waitTimer
	waitSignal
	waitDone
)

// Wait is the resume condition of a suspended task.
type Wait struct {
	kind  waitKind
	until time.Time
	sig   *Signal
}

// Yield suspends the task and makes it ready again on the next pass.
func Yield() Wait { return Wait{kind: waitYield} }

// Until suspends the task until the clock reaches t.
func Until(t time.Time) Wait { return Wait{kind: waitTimer, until: t} }

// OnSignal suspends the task until sig is raised.
func OnSignal(sig *Signal) Wait { return Wait{kind: waitSignal, sig: sig} }

// OnSignalUntil suspends the task until sig is raised or the clock
// reaches t, whichever comes first.
func OnSignalUntil(sig *Signal, t time.Time) Wait {
	return Wait{kind: waitSignal, sig: sig, until: t}
}

// Done completes the task.
func Done() Wait { return Wait{kind: waitDone} }

// deadline of the wait condition (if any)
func (w Wait) deadline() (time.Time, bool) {
	switch w.kind {
	case waitTimer:
		return w.until, true
	case waitSignal:
		return w.until, !w.until.IsZero()
	}
	return time.Time{}, false
}

// satisfied checks (and consumes) the resume condition.
func (w Wait) satisfied(now time.Time) bool {
	switch w.kind {
	case waitYield:
		return true
	case waitTimer:
		return !now.Before(w.until)
	case waitSignal:
		if w.sig != nil && w.sig.take() {
			return true
		}
		return !w.until.IsZero() && !now.Before(w.until)
	}
	return false
}

// Signal is a wake-up flag for tasks. Raising is safe from any goroutine
// (or interrupt handler); the first task resumed by it consumes it.
type Signal struct {
	raised atomic.Bool
}

// Raise the signal.
func (s *Signal) Raise() { s.raised.Store(true) }

// Pending returns true if the signal is raised and not yet consumed.
func (s *Signal) Pending() bool { return s.raised.Load() }

func (s *Signal) take() bool { return s.raised.Swap(false) }

//----------------------------------------------------------------------

// TaskID identifies a spawned task.
type TaskID uint8

// TaskInfo is a snapshot of a task table entry.
type TaskInfo struct {
	ID    TaskID
	Name  string
	State TaskState
	Polls uint64
}

type taskSlot struct {
	name  string
	task  Task
	state TaskState
	wait  Wait
	polls uint64
}

// Scheduler runs tasks cooperatively on a single thread: exactly one task
// executes at a time and control changes only when it suspends.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger
	tasks  []taskSlot // fixed at construction
	count  int
	rr     int // round-robin cursor
	idle   time.Duration
}

// NewScheduler creates a scheduler with a task table of fixed capacity.
func NewScheduler(capacity int, clk Clock, logger *slog.Logger) *Scheduler {
	if capacity < 0 {
		capacity = 0
	}
	return &Scheduler{
		clock:  clk,
		logger: orDiscard(logger),
		tasks:  make([]taskSlot, capacity),
		idle:   defaultIdle,
	}
}

// Capacity of the task table.
func (s *Scheduler) Capacity() int { return len(s.tasks) }

// Spawn a task into the table. The table never grows: spawning into a
// full table fails with ErrTaskTableFull.
func (s *Scheduler) Spawn(name string, t Task) (TaskID, error) {
	if t == nil {
		return 0, ErrNilTask
	}
	if s.count >= len(s.tasks) {
		return 0, ErrTaskTableFull
	}
	id := TaskID(s.count)
	s.tasks[id] = taskSlot{name: name, task: t, state: TaskReady}
	s.count++
	s.logger.Debug("task spawned", slog.String("task", name), slog.Int("id", int(id)))
	return id, nil
}

// State of a spawned task.
func (s *Scheduler) State(id TaskID) (TaskState, error) {
	if int(id) >= s.count {
		return 0, ErrNoTask
	}
	return s.tasks[id].state, nil
}

// Tasks returns a snapshot of the task table.
func (s *Scheduler) Tasks() []TaskInfo {
	list := make([]TaskInfo, 0, s.count)
	for i := range s.count {
		st := &s.tasks[i]
		list = append(list, TaskInfo{
			ID:    TaskID(i),
			Name:  st.name,
			State: st.state,
			Polls: st.polls,
		})
	}
	return list
}

// resume suspended tasks whose wait condition is satisfied.
func (s *Scheduler) resume(now time.Time) {
	for i := range s.count {
		st := &s.tasks[i]
		if st.state == TaskSuspended && st.wait.satisfied(now) {
			st.state = TaskReady
			st.wait = Wait{}
		}
	}
}

// Step resumes due tasks and polls at most one ready task (in ready-task
// order, starting after the task polled last). Returns false if no task
// was ready.
func (s *Scheduler) Step() bool {
	now := s.clock.Now()
	s.resume(now)
	for i := range s.count {
		id := (s.rr + i) % s.count
		st := &s.tasks[id]
		if st.state != TaskReady {
			continue
		}
		s.rr = (id + 1) % s.count
		st.polls++
		w := st.task.Poll(now)
		if w.kind == waitDone {
			st.state = TaskCompleted
			s.logger.Info("task completed", slog.String("task", st.name))
		} else {
			st.state = TaskSuspended
			st.wait = w
		}
		return true
	}
	return false
}

// NextWake returns the time the next suspended task becomes due. If a
// task is ready (or only yielded) the current time is returned. Returns
// false if no task waits on a deadline.
func (s *Scheduler) NextWake() (time.Time, bool) {
	now := s.clock.Now()
	var (
		next time.Time
		ok   bool
	)
	for i := range s.count {
		st := &s.tasks[i]
		switch st.state {
		case TaskReady:
			return now, true
		case TaskSuspended:
			if st.wait.kind == waitYield || (st.wait.sig != nil && st.wait.sig.Pending()) {
				return now, true
			}
			if t, has := st.wait.deadline(); has && (!ok || t.Before(next)) {
				next, ok = t, true
			}
		}
	}
	return next, ok
}

// sleep until the next task is due, but not past limit (if set).
func (s *Scheduler) sleep(limit time.Time) {
	now := s.clock.Now()
	d := s.idle
	if wake, ok := s.NextWake(); ok {
		d = wake.Sub(now)
	}
	if !limit.IsZero() {
		if rest := limit.Sub(now); rest < d {
			d = rest
		}
	}
	if d > 0 {
		s.clock.Sleep(d)
	}
}

// RunUntil drives the tasks until the clock reaches t.
func (s *Scheduler) RunUntil(t time.Time) {
	for s.clock.Now().Before(t) {
		if !s.Step() {
			s.sleep(t)
		}
	}
}

// Run the scheduler loop. It does not return under normal operation; on
// hosts it returns when the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler running", slog.Int("tasks", s.count), slog.Int("capacity", len(s.tasks)))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !s.Step() {
			s.sleep(time.Time{})
		}
	}
}
