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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ledRecorder is a device that records LED levels with their time.
type ledRecorder struct {
	clk    *SimClock
	levels []bool
	at     []time.Duration
}

func (d *ledRecorder) LED(on bool) {
	d.levels = append(d.levels, on)
	d.at = append(d.at, d.clk.Now().Sub(epoch))
}

func (d *ledRecorder) InitRadio(RadioConfig) (Link, Controller, error) {
	return nil, nil, ErrNotImplemented
}

func TestStatusShow(t *testing.T) {
	tests := []struct {
		code    int
		pulses  int
		elapsed time.Duration
	}{
		{StatOK, 1, 300 * time.Millisecond},
		{StatSTACK, 4, 1200 * time.Millisecond},
		{StatSCHED, 3, 1900 * time.Millisecond}, // one long, two short
		{12, 4, 3200 * time.Millisecond},
	}
	for _, tc := range tests {
		clk := NewSimClock(epoch)
		dev := &ledRecorder{clk: clk}
		st := NewStatus(dev, clk)
		assert.Equal(t, StatOK, st.Get())
		st.Set(tc.code)
		st.Show()

		assert.Len(t, dev.levels, 2*tc.pulses, "code %d", tc.code)
		for i, on := range dev.levels {
			assert.Equal(t, i%2 == 0, on)
		}
		assert.Equal(t, tc.elapsed, clk.Now().Sub(epoch), "code %d", tc.code)
	}
}

func TestStatusLongBlink(t *testing.T) {
	clk := NewSimClock(epoch)
	dev := &ledRecorder{clk: clk}
	st := NewStatus(dev, clk)
	st.Set(StatEXCP)
	st.Show()
	// 8 = 5 + 3: first pulse lasts a second
	assert.Equal(t, []time.Duration{0, time.Second, 1300 * time.Millisecond}, dev.at[:3])
}

func TestStatusNil(t *testing.T) {
	var st *Status
	st.Set(StatDEV) // no-op
}
