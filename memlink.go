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
	"errors"
	"slices"
	"sync"
)

// ErrLinkDown is returned by a MemLink that is set to fail.
var ErrLinkDown = errors.New("link down")

// MemLink is an in-memory link device: frames are injected by the host
// side and transmitted frames are handed to an observer.
type MemLink struct {
	mac     [6]byte
	mu      sync.Mutex
	inbox   [][]byte
	handler func([]byte) error
	observe func([]byte)
	fail    int // number of upcoming sends to fail
	sent    int
}

// NewMemLink creates an in-memory link with the given MAC address.
func NewMemLink(mac [6]byte) *MemLink {
	return &MemLink{mac: mac}
}

// HardwareAddr6 returns the MAC address.
func (l *MemLink) HardwareAddr6() ([6]byte, error) { return l.mac, nil }

// RecvEthHandle sets the receive handler.
func (l *MemLink) RecvEthHandle(handler func(frame []byte) error) {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
}

// PollOne passes one injected frame to the receive handler.
func (l *MemLink) PollOne() (bool, error) {
	l.mu.Lock()
	if len(l.inbox) == 0 || l.handler == nil {
		l.mu.Unlock()
		return false, nil
	}
	frame := l.inbox[0]
	l.inbox = l.inbox[1:]
	handler := l.handler
	l.mu.Unlock()
	return true, handler(frame)
}

// SendEth hands a frame to the observer.
func (l *MemLink) SendEth(frame []byte) error {
	l.mu.Lock()
	if l.fail > 0 {
		l.fail--
		l.mu.Unlock()
		return ErrLinkDown
	}
	l.sent++
	observe := l.observe
	l.mu.Unlock()
	if observe != nil {
		observe(slices.Clone(frame))
	}
	return nil
}

// Inject queues a frame for reception.
func (l *MemLink) Inject(frame []byte) {
	l.mu.Lock()
	l.inbox = append(l.inbox, slices.Clone(frame))
	l.mu.Unlock()
}

// Observe sets the function called with every transmitted frame.
func (l *MemLink) Observe(fn func(frame []byte)) {
	l.mu.Lock()
	l.observe = fn
	l.mu.Unlock()
}

// FailSends makes the next n sends fail.
func (l *MemLink) FailSends(n int) {
	l.mu.Lock()
	l.fail = n
	l.mu.Unlock()
}

// Sent returns the number of transmitted frames.
func (l *MemLink) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}
