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
	"log/slog"
	"math/rand/v2"
	"net"
	"net/netip"
	"slices"
	"time"

	"github.com/soypat/seqs/stacks"
)

// Error messages
var (
	ErrNoLink         = errors.New("no link device")
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	ErrInvalidGateway = errors.New("gateway not a host in the local network")
	ErrInvalidDNS     = errors.New("invalid DNS server address")
	ErrSlotCount      = errors.New("socket slot count must be positive")
)

const (
	mtu = 1500

	// Maximum number of packets to queue before sending them.
	txQueueSize              = 3
	maxRetriesBeforeDropping = 3

	// size of the copy buffer between socket rings and engines
	scratchSize = 256
)

//----------------------------------------------------------------------

// IPv4Config is a static IPv4 assignment.
type IPv4Config struct {
	Address netip.Prefix // address and prefix length
	Gateway netip.Addr   // invalid if there is none
	DNS     []netip.Addr
}

// StaticConfigV4 builds a static IPv4 assignment.
func StaticConfigV4(addr netip.Prefix, gw netip.Addr, dns ...netip.Addr) IPv4Config {
	return IPv4Config{
		Address: addr,
		Gateway: gw,
		DNS:     slices.Clone(dns),
	}
}

// Validate the assignment.
func (c IPv4Config) Validate() error {
	if !c.Address.IsValid() || !c.Address.Addr().Is4() {
		return ErrInvalidAddress
	}
	if c.Gateway.IsValid() && (!c.Gateway.Is4() || !c.Address.Contains(c.Gateway)) {
		return ErrInvalidGateway
	}
	for _, a := range c.DNS {
		if !a.IsValid() || !a.Is4() {
			return ErrInvalidDNS
		}
	}
	return nil
}

// clone returns a copy that shares no memory with c.
func (c IPv4Config) clone() IPv4Config {
	c.DNS = slices.Clone(c.DNS)
	return c
}

// nextHop returns the address to resolve for reaching dst.
func (c IPv4Config) nextHop(dst netip.Addr) (netip.Addr, bool) {
	if c.Address.Contains(dst) {
		return dst, true
	}
	if c.Gateway.IsValid() {
		return c.Gateway, true
	}
	return netip.Addr{}, false
}

func (c IPv4Config) String() string {
	s := c.Address.String()
	if c.Gateway.IsValid() {
		s += " via " + c.Gateway.String()
	}
	if len(c.DNS) > 0 {
		s += fmt.Sprintf(" dns %v", c.DNS)
	}
	return s
}

//----------------------------------------------------------------------

// StackConfig for a network stack.
type StackConfig struct {
	IPv4   IPv4Config
	Slots  int    // number of concurrent sockets
	Seed   uint64 // seed for sequence numbers and ephemeral ports
	Logger *slog.Logger
}

// Stats of a network stack.
type Stats struct {
	RxFrames  uint64
	RxDropped uint64
	TxFrames  uint64
	TxDropped uint64
	Errors    uint64
}

// Stack is the network stack. It owns the link device, the static IPv4
// assignment and a fixed table of socket slots; protocol processing is
// done by a seqs port stack whenever the stack is polled.
type Stack struct {
	link   Link
	mac    [6]byte
	cfg    IPv4Config
	ps     *stacks.PortStack
	slots  []*Socket // fixed at construction
	rng    *rand.Rand
	signal Signal
	logger *slog.Logger
	stats  Stats

	// transmit queue
	queue   [txQueueSize][mtu]byte
	lenBuf  [txQueueSize]int
	retries [txQueueSize]int

	scratch [scratchSize]byte

	arp       hwResolver
	arpOwner  *Socket
	newEngine func(rxSize, txSize int) (tcpEngine, error)
}

// NewStack creates the network stack on top of a link device. The stack
// takes exclusive ownership of the link.
func NewStack(link Link, cfg StackConfig) (*Stack, error) {
	if link == nil {
		return nil, ErrNoLink
	}
	if err := cfg.IPv4.Validate(); err != nil {
		return nil, err
	}
	if cfg.Slots < 1 {
		return nil, ErrSlotCount
	}
	mac, err := link.HardwareAddr6()
	if err != nil {
		return nil, fmt.Errorf("hardware address: %w", err)
	}
	logger := orDiscard(cfg.Logger)
	s := &Stack{
		link:   link,
		mac:    mac,
		cfg:    cfg.IPv4.clone(),
		slots:  make([]*Socket, cfg.Slots),
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		logger: logger,
	}
	s.ps = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: 1,
		MaxOpenPortsTCP: cfg.Slots,
		MTU:             mtu,
		Logger:          logger,
	})
	s.ps.SetAddr(s.cfg.Address.Addr())
	s.arp = arpResolver{ps: s.ps}
	s.newEngine = func(rxSize, txSize int) (tcpEngine, error) {
		return newSeqsEngine(s.ps, rxSize, txSize)
	}
	link.RecvEthHandle(s.recv)

	logger.Info("network stack up",
		slog.String("mac", net.HardwareAddr(mac[:]).String()),
		slog.String("ipv4", s.cfg.String()),
		slog.Int("slots", cfg.Slots),
	)
	return s, nil
}

// Config returns the active IPv4 assignment.
func (s *Stack) Config() IPv4Config { return s.cfg.clone() }

// HardwareAddr returns the MAC address of the link.
func (s *Stack) HardwareAddr() [6]byte { return s.mac }

// Signal is raised when the stack has new work queued.
func (s *Stack) Signal() *Signal { return &s.signal }

// Stats returns the frame counters.
func (s *Stack) Stats() Stats { return s.stats }

// Slots returns the size of the socket slot table.
func (s *Stack) Slots() int { return len(s.slots) }

// FreeSlots returns the number of unclaimed socket slots.
func (s *Stack) FreeSlots() (n int) {
	for _, sock := range s.slots {
		if sock == nil {
			n++
		}
	}
	return
}

// Sockets returns a snapshot of all bound sockets.
func (s *Stack) Sockets(now time.Time) []SocketInfo {
	var list []SocketInfo
	for _, sock := range s.slots {
		if sock != nil {
			list = append(list, sock.Info(now))
		}
	}
	return list
}

// recv handles a frame from the link. Errors are protocol matters of
// the stack and are not passed back to the radio.
func (s *Stack) recv(frame []byte) error {
	s.stats.RxFrames++
	if err := s.ps.RecvEth(frame); err != nil {
		s.stats.RxDropped++
		s.logger.Debug("frame dropped", slog.String("err", err.Error()))
	}
	return nil
}

// Poll drives the stack once: receive at most one frame, drive bound
// sockets and transmit pending frames. Returns true if anything happened.
func (s *Stack) Poll(now time.Time) (busy bool) {
	// Poll for incoming packets.
	got, err := s.link.PollOne()
	if err != nil {
		s.stats.Errors++
		s.logger.Debug("poll error", slog.String("err", err.Error()))
	}
	busy = got

	for _, sock := range s.slots {
		if sock != nil && sock.poll(now) {
			busy = true
		}
	}

	// Queue packets to be sent.
	for i := range s.queue {
		if s.retries[i] != 0 {
			continue // Packet currently queued for retransmission.
		}
		n, err := s.ps.HandleEth(s.queue[i][:])
		if err != nil {
			s.stats.Errors++
			s.logger.Debug("stack error", slog.String("err", err.Error()))
			s.lenBuf[i] = 0
			continue
		}
		s.lenBuf[i] = n
		if n == 0 {
			break
		}
		s.credit(s.queue[i][:n])
	}

	// Send queued packets.
	for i := range s.queue {
		n := s.lenBuf[i]
		if n <= 0 {
			continue
		}
		busy = true
		if err := s.link.SendEth(s.queue[i][:n]); err != nil {
			// Queue packet for retransmission.
			s.retries[i]++
			if s.retries[i] > maxRetriesBeforeDropping {
				s.markSent(i)
				s.stats.TxDropped++
				s.logger.Warn("dropped outgoing packet", slog.String("err", err.Error()))
			}
			continue
		}
		s.markSent(i)
		s.stats.TxFrames++
	}
	return
}

// credit hands the payload size of an outgoing TCP frame back to the
// socket engines: those bytes have left the engine's transmit ring.
func (s *Stack) credit(frame []byte) {
	port, n, ok := tcpPayload(frame)
	if !ok || n == 0 {
		return
	}
	for _, sock := range s.slots {
		if sock != nil {
			sock.eng.sent(port, n)
		}
	}
}

func (s *Stack) markSent(i int) {
	s.lenBuf[i] = 0
	s.retries[i] = 0
}

// NextDeadline returns the earliest internal timer of the stack.
func (s *Stack) NextDeadline() (next time.Time, ok bool) {
	for _, sock := range s.slots {
		if sock == nil {
			continue
		}
		if t, has := sock.deadline(); has && (!ok || t.Before(next)) {
			next, ok = t, true
		}
	}
	return
}

//----------------------------------------------------------------------
// slot table

func (s *Stack) claim(sock *Socket) (int, error) {
	for i, x := range s.slots {
		if x == nil {
			s.slots[i] = sock
			return i, nil
		}
	}
	return -1, ErrNoFreeSlot
}

func (s *Stack) release(slot int) {
	if slot < 0 || slot >= len(s.slots) {
		return
	}
	if s.arpOwner == s.slots[slot] {
		s.arpOwner = nil
	}
	s.slots[slot] = nil
}

// the ARP client serves one resolution at a time
func (s *Stack) acquireARP(sock *Socket) bool {
	if s.arpOwner != nil && s.arpOwner != sock {
		return false
	}
	s.arpOwner = sock
	return true
}

func (s *Stack) releaseARP(sock *Socket) {
	if s.arpOwner == sock {
		s.arpOwner = nil
	}
}

// initial sequence number for a new connection
func (s *Stack) iss() uint32 { return s.rng.Uint32() }

// ephemeralPort picks a local port for an active open (RFC 6335 range).
func (s *Stack) ephemeralPort() uint16 {
	return 49152 + uint16(s.rng.IntN(16384))
}
