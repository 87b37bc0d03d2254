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

// ring is a byte FIFO over a borrowed buffer. It never reallocates.
type ring struct {
	buf  []byte
	off  int // read offset
	size int // buffered bytes
}

func newRing(buf []byte) ring {
	return ring{buf: buf}
}

// Cap returns the capacity of the ring.
func (r *ring) Cap() int { return len(r.buf) }

// Buffered returns the number of readable bytes.
func (r *ring) Buffered() int { return r.size }

// Free returns the number of writable bytes.
func (r *ring) Free() int { return len(r.buf) - r.size }

// Write as much of p as fits; returns the number of bytes written.
func (r *ring) Write(p []byte) int {
	n := 0
	for len(p) > 0 && r.size < len(r.buf) {
		end := (r.off + r.size) % len(r.buf)
		lim := len(r.buf)
		if end < r.off {
			lim = r.off
		}
		k := copy(r.buf[end:lim], p)
		r.size += k
		p = p[k:]
		n += k
	}
	return n
}

// Read up to len(p) bytes; returns the number of bytes read.
func (r *ring) Read(p []byte) int {
	n := r.Peek(p)
	r.Discard(n)
	return n
}

// Peek copies up to len(p) buffered bytes without consuming them.
func (r *ring) Peek(p []byte) int {
	n, off, size := 0, r.off, r.size
	for len(p) > 0 && size > 0 {
		lim := off + size
		if lim > len(r.buf) {
			lim = len(r.buf)
		}
		k := copy(p, r.buf[off:lim])
		p = p[k:]
		n += k
		size -= k
		off = (off + k) % len(r.buf)
	}
	return n
}

// Discard drops up to n buffered bytes.
func (r *ring) Discard(n int) {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return
	}
	r.size -= n
	if r.size == 0 {
		r.off = 0
	} else {
		r.off = (r.off + n) % len(r.buf)
	}
}

// Reset empties the ring.
func (r *ring) Reset() {
	r.off, r.size = 0, 0
}
