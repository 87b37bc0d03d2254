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

import "time"

// BlinkTask toggles an output line at a fixed interval. The interval is
// measured from each toggle; lateness is not compensated.
type BlinkTask struct {
	led      func(on bool)
	interval time.Duration
	level    bool
	toggles  uint64
}

// NewBlinkTask creates a blink task for the given output.
func NewBlinkTask(led func(on bool), interval time.Duration) *BlinkTask {
	return &BlinkTask{
		led:      led,
		interval: interval,
	}
}

// Poll toggles the output and suspends for one interval.
func (b *BlinkTask) Poll(now time.Time) Wait {
	b.level = !b.level
	b.led(b.level)
	b.toggles++
	return Until(now.Add(b.interval))
}

// Level returns the current output level.
func (b *BlinkTask) Level() bool { return b.level }

// Toggles returns the number of toggles so far.
func (b *BlinkTask) Toggles() uint64 { return b.toggles }

//----------------------------------------------------------------------

// LinkTask keeps the network stack going. Every iteration polls the
// stack once and suspends: it yields right away if the stack did some
// work, otherwise it waits for the stack signal, the next internal timer
// of the stack or the idle interval, whichever comes first.
type LinkTask struct {
	stack *Stack
	idle  time.Duration
	polls uint64
}

// NewLinkTask creates the driver task of a stack.
func NewLinkTask(stack *Stack, idle time.Duration) *LinkTask {
	return &LinkTask{
		stack: stack,
		idle:  idle,
	}
}

// Poll drives the stack once.
func (l *LinkTask) Poll(now time.Time) Wait {
	l.polls++
	if l.stack.Poll(now) {
		return Yield()
	}
	wake := now.Add(l.idle)
	if t, ok := l.stack.NextDeadline(); ok && t.Before(wake) {
		wake = t
	}
	return OnSignalUntil(l.stack.Signal(), wake)
}

// Polls returns the number of stack polls so far.
func (l *LinkTask) Polls() uint64 { return l.polls }
