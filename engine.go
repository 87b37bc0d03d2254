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
	"net/netip"

	"github.com/soypat/seqs"
	"github.com/soypat/seqs/eth"
	"github.com/soypat/seqs/stacks"
)

// Shutdown records which directions of a closing connection are done.
type Shutdown uint8

// Shutdown flags
const (
	ShutRead  Shutdown = 1 << iota // peer sent FIN: nothing more to receive
	ShutWrite                      // FIN sent (or requested): nothing more to send
)

func (sh Shutdown) String() string {
	switch sh {
	case ShutRead:
		return "rd"
	case ShutWrite:
		return "wr"
	case ShutRead | ShutWrite:
		return "rdwr"
	}
	return "-"
}

// tcpEngine is the protocol machinery behind a Socket. None of its
// methods may block.
type tcpEngine interface {
	listen(port uint16, iss uint32) error
	dial(local uint16, mac [6]byte, remote netip.AddrPort, iss uint32) error
	state() (State, Shutdown)
	buffered() int
	available() int
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	// sent reports n payload bytes transmitted from local port.
	sent(port uint16, n int)
	close() error
	abort()
}

// hwResolver resolves the hardware address of a next hop.
type hwResolver interface {
	begin(ip netip.Addr) error
	done() bool
	result() ([6]byte, error)
	abort()
}

//----------------------------------------------------------------------

// seqsEngine runs TCP on a seqs connection.
//
// The connection's transmit ring has no free-space query and its Write
// spins until everything is queued, so the engine counts the bytes it
// queued and the stack reports the payload of every frame the
// connection emits. Writes are cut to the known free space.
type seqsEngine struct {
	conn   *stacks.TCPConn
	txSize int
	queued int // written to conn, not yet on the wire
}

func newSeqsEngine(ps *stacks.PortStack, rxSize, txSize int) (tcpEngine, error) {
	conn, err := stacks.NewTCPConn(ps, stacks.TCPConnConfig{
		TxBufSize: uint16(txSize),
		RxBufSize: uint16(rxSize),
	})
	if err != nil {
		return nil, err
	}
	return &seqsEngine{conn: conn, txSize: txSize}, nil
}

func (e *seqsEngine) listen(port uint16, iss uint32) error {
	e.queued = 0
	return e.conn.OpenListenTCP(port, seqs.Value(iss))
}

func (e *seqsEngine) dial(local uint16, mac [6]byte, remote netip.AddrPort, iss uint32) error {
	e.queued = 0
	return e.conn.OpenDialTCP(local, mac, remote, seqs.Value(iss))
}

// state folds the RFC 9293 states into the socket states.
func (e *seqsEngine) state() (State, Shutdown) {
	switch e.conn.State() {
	case seqs.StateListen:
		return StateListening, 0
	case seqs.StateSynSent, seqs.StateSynRcvd:
		return StateConnecting, 0
	case seqs.StateEstablished:
		return StateEstablished, 0
	case seqs.StateCloseWait:
		return StateClosing, ShutRead
	case seqs.StateFinWait1, seqs.StateFinWait2:
		return StateClosing, ShutWrite
	case seqs.StateClosing, seqs.StateLastAck, seqs.StateTimeWait:
		return StateClosing, ShutRead | ShutWrite
	}
	return StateClosed, 0
}

func (e *seqsEngine) buffered() int { return e.conn.BufferedInput() }

func (e *seqsEngine) available() int {
	if e.conn.State() == seqs.StateClosed {
		e.queued = 0 // ring dropped with the connection
	}
	return e.txSize - e.queued
}

// read never waits: conn.Read spins on an empty ring.
func (e *seqsEngine) read(p []byte) (int, error) {
	if e.conn.BufferedInput() == 0 {
		return 0, nil
	}
	return e.conn.Read(p)
}

func (e *seqsEngine) write(p []byte) (int, error) {
	n := min(len(p), e.available())
	if n <= 0 {
		return 0, nil
	}
	n, err := e.conn.Write(p[:n])
	e.queued += n
	return n, err
}

func (e *seqsEngine) sent(port uint16, n int) {
	if port == 0 || port != e.conn.LocalPort() {
		return
	}
	e.queued = max(e.queued-n, 0)
}

func (e *seqsEngine) close() error {
	// a connection without a peer has nobody to send a FIN to
	if e.conn.State().IsPreestablished() {
		e.abort()
		return nil
	}
	return e.conn.Close()
}

// abort drops the connection without a FIN. Closing the port makes
// the port stack discard the connection state.
func (e *seqsEngine) abort() {
	if port := e.conn.LocalPort(); port != 0 {
		_ = e.conn.PortStack().CloseTCP(port)
	}
	e.queued = 0
}

// tcpPayload returns the source port and payload length of a TCP
// frame. ok is false for anything else.
func tcpPayload(frame []byte) (port uint16, n int, ok bool) {
	const ipProtoTCP = 6
	if len(frame) < eth.SizeEthernetHeader+eth.SizeIPv4Header+eth.SizeTCPHeader {
		return
	}
	if eth.DecodeEthernetHeader(frame).AssertType() != eth.EtherTypeIPv4 {
		return
	}
	ip, ipOff := eth.DecodeIPv4Header(frame[eth.SizeEthernetHeader:])
	if ip.Protocol != ipProtoTCP {
		return
	}
	start := eth.SizeEthernetHeader + int(ipOff)
	end := eth.SizeEthernetHeader + int(ip.TotalLength)
	if end > len(frame) || start+eth.SizeTCPHeader > end {
		return
	}
	tcp, tcpOff := eth.DecodeTCPHeader(frame[start:])
	if start+int(tcpOff) > end {
		return
	}
	return tcp.SourcePort, end - start - int(tcpOff), true
}
//----------------------------------------------------------------------

// arpResolver uses the ARP client of the port stack.
type arpResolver struct {
	ps *stacks.PortStack
}

func (r arpResolver) begin(ip netip.Addr) error {
	arpc := r.ps.ARP()
	arpc.Abort() // Remove any previous ARP requests.
	return arpc.BeginResolve(ip)
}

func (r arpResolver) done() bool { return r.ps.ARP().IsDone() }

func (r arpResolver) result() ([6]byte, error) {
	_, hw, err := r.ps.ARP().ResultAs6()
	return hw, err
}

func (r arpResolver) abort() { r.ps.ARP().Abort() }
