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

	"github.com/stretchr/testify/assert"
)

func TestRingWrapAround(t *testing.T) {
	r := newRing(make([]byte, 8))
	assert.Equal(t, 8, r.Cap())
	assert.Equal(t, 6, r.Write([]byte("abcdef")))

	buf := make([]byte, 4)
	assert.Equal(t, 4, r.Read(buf))
	assert.Equal(t, "abcd", string(buf))

	// wraps past the end of the buffer
	assert.Equal(t, 6, r.Write([]byte("ghijklmn")))
	assert.Equal(t, 8, r.Buffered())
	assert.Zero(t, r.Free())
	assert.Zero(t, r.Write([]byte("x")))

	out := make([]byte, 16)
	n := r.Read(out)
	assert.Equal(t, "efghijkl", string(out[:n]))
	assert.Zero(t, r.Buffered())
}

func TestRingPeekDiscard(t *testing.T) {
	r := newRing(make([]byte, 4))
	r.Write([]byte("abc"))
	r.Discard(2)
	r.Write([]byte("def"))

	buf := make([]byte, 8)
	n := r.Peek(buf)
	assert.Equal(t, "cdef", string(buf[:n]))
	assert.Equal(t, 4, r.Buffered(), "peek does not consume")

	r.Discard(10)
	assert.Zero(t, r.Buffered())
	r.Discard(-1)
	assert.Zero(t, r.Buffered())
}

func TestRingReset(t *testing.T) {
	r := newRing(make([]byte, 4))
	r.Write([]byte("abcd"))
	r.Reset()
	assert.Equal(t, 4, r.Free())
	assert.Zero(t, r.Read(make([]byte, 4)))
}

func TestRingEmptyBuffer(t *testing.T) {
	r := newRing(nil)
	assert.Zero(t, r.Write([]byte("a")))
	assert.Zero(t, r.Read(make([]byte, 1)))
	assert.Zero(t, r.Peek(make([]byte, 1)))
}
