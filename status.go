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
	"time"
)

// status codes
const (
	StatUNK    = iota // unknown status (init)
	StatOK            // processing active
	StatDEV           // device failure
	StatRADIO         // radio bring-up failed
	StatSTACK         // network stack construction failed
	StatTASK          // task table exhausted
	StatSOCKET        // socket construction failed
	StatSCHED         // scheduler stopped
	StatEXCP          // exception (panic) occured
)

// Status handler.
// Shows a fatal status code on the LED once the scheduler is gone.
type Status struct {
	dev   Device // reference to device
	clock Clock
	curr  int // current state
}

// NewStatus creates a new status display
func NewStatus(dev Device, clk Clock) *Status {
	return &Status{
		dev:   dev,
		clock: clk,
		curr:  StatOK,
	}
}

// Set status
func (state *Status) Set(code int) {
	if state != nil {
		state.curr = code
	}
}

// Get current state
func (state *Status) Get() int {
	return state.curr
}

// Show blinks the current state once: a long blink for every five,
// a short blink for every remaining one.
func (state *Status) Show() {
	num := state.curr
	for num > 5 {
		state.dev.LED(true)
		state.clock.Sleep(1000 * time.Millisecond)
		state.dev.LED(false)
		state.clock.Sleep(300 * time.Millisecond)
		num -= 5
	}
	for range num {
		state.dev.LED(true)
		state.clock.Sleep(150 * time.Millisecond)
		state.dev.LED(false)
		state.clock.Sleep(150 * time.Millisecond)
	}
}

// Halt shows the status code forever.
func (state *Status) Halt(code int) {
	state.Set(code)
	for {
		state.clock.Sleep(5 * time.Second)
		state.Show()
	}
}

// Trap critical failures (panic)
func (state *Status) Trap() {
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		state.Halt(StatEXCP)
	}
}
