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

// Clock is the time source of the scheduler and its tasks.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock uses the hardware timer (via the runtime).
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for the given duration.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

//----------------------------------------------------------------------

// SimClock is a manually driven clock. Sleeping advances the clock
// instantly, so a scheduler running on it never blocks.
type SimClock struct {
	now time.Time
}

// NewSimClock creates a simulated clock starting at the given time.
func NewSimClock(start time.Time) *SimClock {
	return &SimClock{now: start}
}

// Now returns the simulated time.
func (c *SimClock) Now() time.Time { return c.now }

// Sleep advances the simulated time.
func (c *SimClock) Sleep(d time.Duration) { c.Advance(d) }

// Advance moves the clock forward; negative durations are ignored.
func (c *SimClock) Advance(d time.Duration) {
	if d > 0 {
		c.now = c.now.Add(d)
	}
}
