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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func idleTask() Task {
	return TaskFunc(func(now time.Time) Wait { return Until(now.Add(time.Hour)) })
}

func TestSchedulerSpawnCapacity(t *testing.T) {
	for capacity := 0; capacity <= 5; capacity++ {
		t.Run(fmt.Sprintf("cap%d", capacity), func(t *testing.T) {
			s := NewScheduler(capacity, NewSimClock(epoch), nil)
			require.Equal(t, capacity, s.Capacity())
			for i := range capacity {
				id, err := s.Spawn(fmt.Sprintf("t%d", i), idleTask())
				require.NoError(t, err)
				assert.Equal(t, TaskID(i), id)
			}
			_, err := s.Spawn("overflow", idleTask())
			assert.ErrorIs(t, err, ErrTaskTableFull)
			// still full on retry
			_, err = s.Spawn("overflow", idleTask())
			assert.ErrorIs(t, err, ErrTaskTableFull)
			assert.Len(t, s.Tasks(), capacity)
		})
	}
}

func TestSchedulerSpawnNil(t *testing.T) {
	s := NewScheduler(1, NewSimClock(epoch), nil)
	_, err := s.Spawn("nil", nil)
	assert.ErrorIs(t, err, ErrNilTask)
	_, err = s.State(0)
	assert.ErrorIs(t, err, ErrNoTask)
}

func TestSchedulerReadyOrder(t *testing.T) {
	s := NewScheduler(3, NewSimClock(epoch), nil)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.Spawn(name, TaskFunc(func(time.Time) Wait {
			order = append(order, name)
			return Yield()
		}))
		require.NoError(t, err)
	}
	for range 7 {
		require.True(t, s.Step())
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a"}, order)
}

func TestSchedulerTimerWait(t *testing.T) {
	clk := NewSimClock(epoch)
	s := NewScheduler(1, clk, nil)
	polls := 0
	id, err := s.Spawn("timer", TaskFunc(func(now time.Time) Wait {
		polls++
		return Until(now.Add(time.Second))
	}))
	require.NoError(t, err)

	require.True(t, s.Step())
	state, _ := s.State(id)
	assert.Equal(t, TaskSuspended, state)

	clk.Advance(999 * time.Millisecond)
	assert.False(t, s.Step())
	wake, ok := s.NextWake()
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), wake)

	clk.Advance(time.Millisecond)
	assert.True(t, s.Step())
	assert.Equal(t, 2, polls)
}

func TestSchedulerSignalWait(t *testing.T) {
	clk := NewSimClock(epoch)
	s := NewScheduler(1, clk, nil)
	var sig Signal
	polls := 0
	_, err := s.Spawn("waiter", TaskFunc(func(time.Time) Wait {
		polls++
		return OnSignal(&sig)
	}))
	require.NoError(t, err)

	require.True(t, s.Step())
	assert.False(t, s.Step())
	_, ok := s.NextWake()
	assert.False(t, ok)

	sig.Raise()
	_, ok = s.NextWake()
	assert.True(t, ok)
	assert.True(t, s.Step())
	assert.False(t, sig.Pending(), "signal consumed by the resumed task")
	assert.False(t, s.Step())
	assert.Equal(t, 2, polls)
}

func TestSchedulerSignalDeadline(t *testing.T) {
	clk := NewSimClock(epoch)
	s := NewScheduler(1, clk, nil)
	var sig Signal
	polls := 0
	_, err := s.Spawn("waiter", TaskFunc(func(now time.Time) Wait {
		polls++
		return OnSignalUntil(&sig, now.Add(50*time.Millisecond))
	}))
	require.NoError(t, err)

	s.RunUntil(epoch.Add(time.Second))
	assert.Equal(t, 20, polls)
}

func TestSchedulerCompleted(t *testing.T) {
	s := NewScheduler(2, NewSimClock(epoch), nil)
	once := 0
	id, err := s.Spawn("once", TaskFunc(func(time.Time) Wait {
		once++
		return Done()
	}))
	require.NoError(t, err)
	require.True(t, s.Step())
	assert.False(t, s.Step())

	state, err := s.State(id)
	require.NoError(t, err)
	assert.Equal(t, TaskCompleted, state)
	assert.Equal(t, 1, once)

	// a completed task keeps its slot
	_, err = s.Spawn("second", idleTask())
	require.NoError(t, err)
	_, err = s.Spawn("third", idleTask())
	assert.ErrorIs(t, err, ErrTaskTableFull)
}

// A task that suspends on every iteration and a task that sleeps one
// second at a time both make progress.
func TestSchedulerNoStarvation(t *testing.T) {
	clk := NewSimClock(epoch)
	s := NewScheduler(2, clk, nil)
	busy, ticks := 0, 0
	_, err := s.Spawn("busy", TaskFunc(func(time.Time) Wait {
		busy++
		clk.Advance(time.Millisecond) // execution time
		return Yield()
	}))
	require.NoError(t, err)
	_, err = s.Spawn("ticker", TaskFunc(func(now time.Time) Wait {
		ticks++
		return Until(now.Add(time.Second))
	}))
	require.NoError(t, err)

	s.RunUntil(epoch.Add(10 * time.Second))
	assert.Equal(t, 10, ticks)
	assert.Greater(t, busy, 9000)
}

func TestSchedulerIdleAdvancesClock(t *testing.T) {
	clk := NewSimClock(epoch)
	s := NewScheduler(1, clk, nil)
	var sig Signal
	_, err := s.Spawn("waiter", TaskFunc(func(time.Time) Wait { return OnSignal(&sig) }))
	require.NoError(t, err)

	// nothing due: the scheduler idles in small steps up to the limit
	end := epoch.Add(time.Second)
	s.RunUntil(end)
	assert.Equal(t, end, clk.Now())
}

func TestTaskStateString(t *testing.T) {
	assert.Equal(t, "ready", TaskReady.String())
	assert.Equal(t, "suspended", TaskSuspended.String())
	assert.Equal(t, "completed", TaskCompleted.String())
	assert.Equal(t, "unknown", TaskState(9).String())
}
