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
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"time"
)

// Error messages
var (
	ErrNoFreeSlot     = errors.New("no free socket slot")
	ErrBufferSize     = errors.New("socket buffer size out of range")
	ErrReleased       = errors.New("socket released")
	ErrNotClosed      = errors.New("socket not closed")
	ErrNotConnected   = errors.New("socket not connected")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidRemote  = errors.New("invalid remote address")
	ErrNoRoute        = errors.New("no route to host")
	ErrResolveTimeout = errors.New("next hop resolution timed out")
	ErrWouldBlock     = errors.New("operation would block")
)

// arpTimeout bounds the next-hop resolution of an active open.
const arpTimeout = time.Second

// buffer sizes are limited by the TCP engine
const maxSocketBuffer = 1<<16 - 1

// State of a TCP socket.
type State uint8

// Socket states
const (
	StateClosed State = iota
	StateListening
	StateConnecting
	StateEstablished
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateListening:
		return "listening"
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// SocketInfo is a snapshot of a socket.
type SocketInfo struct {
	Slot       int
	State      State
	Timeout    time.Duration
	Idle       time.Duration // time since the last exchanged byte (established only)
	Shutdown   Shutdown      // finished directions while closing
	RxBuffered int
	TxBuffered int
}

// pending active open
type dialState struct {
	remote   netip.AddrPort
	hop      netip.Addr
	local    uint16
	started  bool
	deadline time.Time
}

// Socket is a TCP endpoint bound to a slot of the network stack. Its
// receive and transmit buffers are borrowed from the caller and never
// reallocated. Read and Write never block.
type Socket struct {
	stack   *Stack
	slot    int // -1 once released
	eng     tcpEngine
	rx, tx  ring
	state   State
	shut    Shutdown
	closing bool // FIN waits for the transmit ring to drain
	timeout time.Duration
	last    time.Time // last exchanged byte
	dialing bool
	dial    dialState
}

// NewSocket binds a socket to a free slot of the stack.
func NewSocket(stack *Stack, rx, tx []byte) (*Socket, error) {
	if len(rx) == 0 || len(rx) > maxSocketBuffer || len(tx) == 0 || len(tx) > maxSocketBuffer {
		return nil, ErrBufferSize
	}
	s := &Socket{
		stack: stack,
		rx:    newRing(rx),
		tx:    newRing(tx),
	}
	slot, err := stack.claim(s)
	if err != nil {
		return nil, err
	}
	s.slot = slot
	if s.eng, err = stack.newEngine(len(rx), len(tx)); err != nil {
		stack.release(slot)
		return nil, fmt.Errorf("tcp engine: %w", err)
	}
	stack.logger.Debug("socket bound", slog.Int("slot", slot))
	return s, nil
}

// Slot returns the slot index of the socket (-1 if released).
func (s *Socket) Slot() int { return s.slot }

// State of the socket.
func (s *Socket) State() State { return s.state }

// SetTimeout sets the idle timeout: an established connection that has
// exchanged no data for that long is reset. Zero disables the timeout.
func (s *Socket) SetTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.timeout = d
}

// Timeout returns the idle timeout.
func (s *Socket) Timeout() time.Duration { return s.timeout }

// Info returns a snapshot of the socket.
func (s *Socket) Info(now time.Time) SocketInfo {
	info := SocketInfo{
		Slot:       s.slot,
		State:      s.state,
		Shutdown:   s.shut,
		Timeout:    s.timeout,
		RxBuffered: s.rx.Buffered(),
		TxBuffered: s.tx.Buffered(),
	}
	if s.state == StateEstablished {
		info.Idle = now.Sub(s.last)
	}
	return info
}

// Listen opens the socket passively on the given local port.
func (s *Socket) Listen(port uint16) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if port == 0 {
		return ErrInvalidPort
	}
	s.rx.Reset()
	s.tx.Reset()
	if err := s.eng.listen(port, s.stack.iss()); err != nil {
		return fmt.Errorf("listen on %d: %w", port, err)
	}
	s.setState(StateListening, time.Time{})
	s.stack.signal.Raise()
	return nil
}

// Connect opens the socket actively to the remote endpoint. The next hop
// is resolved while the stack is polled; the socket stays Connecting
// until the handshake completes or fails.
func (s *Socket) Connect(remote netip.AddrPort) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if !remote.Addr().Is4() || remote.Port() == 0 {
		return ErrInvalidRemote
	}
	hop, ok := s.stack.cfg.nextHop(remote.Addr())
	if !ok {
		return ErrNoRoute
	}
	s.rx.Reset()
	s.tx.Reset()
	s.dial = dialState{
		remote: remote,
		hop:    hop,
		local:  s.stack.ephemeralPort(),
	}
	s.dialing = true
	s.setState(StateConnecting, time.Time{})
	s.stack.signal.Raise()
	return nil
}

func (s *Socket) checkOpen() error {
	if s.slot < 0 {
		return ErrReleased
	}
	if s.state != StateClosed {
		return ErrNotClosed
	}
	return nil
}

// Read received data. Returns 0 bytes if nothing is buffered and io.EOF
// if nothing is buffered and the peer will send no more (socket closed
// or peer FIN received).
func (s *Socket) Read(p []byte) (int, error) {
	if s.slot < 0 {
		return 0, ErrReleased
	}
	if s.rx.Buffered() == 0 {
		if s.state == StateClosed || s.shut&ShutRead != 0 {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := s.rx.Read(p)
	s.stack.signal.Raise()
	return n, nil
}

// Write queues data for sending. If the transmit buffer cannot take all
// of p, the written part is reported together with ErrWouldBlock. A
// connection the peer has half-closed still accepts data.
func (s *Socket) Write(p []byte) (int, error) {
	if s.slot < 0 {
		return 0, ErrReleased
	}
	if !s.canSend() {
		return 0, ErrNotConnected
	}
	n := s.tx.Write(p)
	if n > 0 {
		s.stack.signal.Raise()
	}
	if n < len(p) {
		return n, ErrWouldBlock
	}
	return n, nil
}

func (s *Socket) canSend() bool {
	switch s.state {
	case StateEstablished:
		return true
	case StateClosing:
		return s.shut&ShutWrite == 0
	}
	return false
}

// Close the connection gracefully. Data already queued is sent before
// the FIN; the socket keeps receiving until the peer closes too.
func (s *Socket) Close() error {
	switch {
	case s.slot < 0:
		return ErrReleased
	case s.dialing:
		s.cancelDial()
		s.setState(StateClosed, time.Time{})
		return nil
	case s.state == StateClosed, s.shut&ShutWrite != 0:
		return nil
	}
	if s.canSend() {
		s.closing = true
	} else if err := s.eng.close(); err != nil {
		return err
	}
	s.shut |= ShutWrite
	s.setState(StateClosing, time.Time{})
	s.stack.signal.Raise()
	return nil
}

// Abort resets the connection.
func (s *Socket) Abort() {
	if s.slot < 0 {
		return
	}
	if s.dialing {
		s.cancelDial()
	}
	s.eng.abort()
	s.rx.Reset()
	s.tx.Reset()
	s.setState(StateClosed, time.Time{})
}

// Release resets the connection and frees the slot.
func (s *Socket) Release() {
	if s.slot < 0 {
		return
	}
	s.Abort()
	s.stack.release(s.slot)
	s.stack.logger.Debug("socket released", slog.Int("slot", s.slot))
	s.slot = -1
}

//----------------------------------------------------------------------

func (s *Socket) setState(st State, now time.Time) {
	if st == StateClosed {
		s.shut, s.closing = 0, false
	}
	if st == s.state {
		return
	}
	s.stack.logger.Debug("socket state",
		slog.Int("slot", s.slot),
		slog.String("from", s.state.String()),
		slog.String("to", st.String()),
	)
	if st == StateEstablished {
		s.last = now
	}
	s.state = st
}

// deadline of the next internal timer of the socket.
func (s *Socket) deadline() (time.Time, bool) {
	switch {
	case s.dialing && s.dial.started:
		return s.dial.deadline, true
	case s.state == StateEstablished && s.timeout > 0:
		return s.last.Add(s.timeout), true
	}
	return time.Time{}, false
}

// poll drives the socket from the stack's poll loop.
func (s *Socket) poll(now time.Time) (busy bool) {
	if s.dialing {
		return s.pollDial(now)
	}
	st, sh := s.eng.state()
	if s.closing && st != StateClosed {
		st, sh = StateClosing, sh|ShutWrite
	}
	if st != s.state {
		s.setState(st, now)
		busy = true
	}
	if sh != s.shut {
		s.shut = sh
		busy = true
	}
	if s.state == StateEstablished || s.state == StateClosing {
		if s.pump() > 0 {
			s.last = now
			busy = true
		}
	}
	if s.closing && s.tx.Buffered() == 0 {
		s.closing = false
		if err := s.eng.close(); err != nil {
			s.stack.logger.Warn("socket close failed",
				slog.Int("slot", s.slot),
				slog.String("err", err.Error()),
			)
		}
		busy = true
	}
	if s.state == StateEstablished && s.timeout > 0 && now.Sub(s.last) >= s.timeout {
		s.stack.logger.Info("socket idle timeout",
			slog.Int("slot", s.slot),
			slog.Duration("timeout", s.timeout),
		)
		s.eng.abort()
		s.tx.Reset()
		s.setState(StateClosed, now)
		busy = true
	}
	return
}

// pump moves data between the rings and the engine. Returns the number
// of bytes moved.
func (s *Socket) pump() (moved int) {
	buf := s.stack.scratch[:]
	for s.rx.Free() > 0 {
		n := min(s.eng.buffered(), s.rx.Free(), len(buf))
		if n <= 0 {
			break
		}
		n, err := s.eng.read(buf[:n])
		s.rx.Write(buf[:n])
		moved += n
		if err != nil || n == 0 {
			break
		}
	}
	for s.tx.Buffered() > 0 {
		n := min(s.eng.available(), s.tx.Buffered(), len(buf))
		if n <= 0 {
			break
		}
		n = s.tx.Peek(buf[:n])
		w, err := s.eng.write(buf[:n])
		s.tx.Discard(w)
		moved += w
		if err != nil {
			// the engine takes no more data on this connection
			s.stack.logger.Debug("socket output dropped",
				slog.Int("slot", s.slot),
				slog.Int("bytes", s.tx.Buffered()),
				slog.String("err", err.Error()),
			)
			s.tx.Reset()
			break
		}
		if w == 0 {
			break
		}
	}
	return
}

// pollDial resolves the next hop of an active open and starts the
// handshake once the hardware address is known.
func (s *Socket) pollDial(now time.Time) bool {
	d := &s.dial
	arp := s.stack.arp
	if !d.started {
		if !s.stack.acquireARP(s) {
			return false
		}
		if err := arp.begin(d.hop); err != nil {
			s.failDial(err)
			return true
		}
		d.started = true
		d.deadline = now.Add(arpTimeout)
		return true
	}
	if !arp.done() {
		if now.Before(d.deadline) {
			return false
		}
		s.failDial(ErrResolveTimeout)
		return true
	}
	mac, err := arp.result()
	s.stack.releaseARP(s)
	if err != nil {
		s.failDial(err)
		return true
	}
	s.dialing = false
	if err = s.eng.dial(d.local, mac, d.remote, s.stack.iss()); err != nil {
		s.failDial(err)
	}
	return true
}

func (s *Socket) failDial(err error) {
	s.stack.logger.Warn("connect failed",
		slog.Int("slot", s.slot),
		slog.String("remote", s.dial.remote.String()),
		slog.String("err", err.Error()),
	)
	s.cancelDial()
	s.setState(StateClosed, time.Time{})
}

func (s *Socket) cancelDial() {
	if s.dial.started && s.stack.arpOwner == s {
		s.stack.arp.abort()
	}
	s.stack.releaseARP(s)
	s.dialing = false
	s.dial = dialState{}
}
