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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"time"
)

// ErrNoDevice is returned when booting without a device.
var ErrNoDevice = errors.New("no device")

// SocketBufferSize is the size of the receive and transmit buffers of
// the node's socket.
const SocketBufferSize = 4096

// Config of a node. Firmware images use DefaultConfig.
type Config struct {
	Radio         RadioConfig
	IPv4          IPv4Config
	Slots         int           // socket slots of the stack
	Tasks         int           // task table capacity
	Blink         time.Duration // LED toggle interval
	LinkIdle      time.Duration // max. stack poll interval when idle
	SocketTimeout time.Duration // idle timeout of the socket
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Radio: RadioConfig{
			Mode: ModeAccessPoint,
			// TODO: seed from the hardware RNG instead of a literal.
			Seed: 1234,
			SSID: "apnode",
		},
		IPv4: StaticConfigV4(
			netip.MustParsePrefix("192.168.2.1/24"),
			netip.MustParseAddr("192.168.2.1"),
		),
		Slots:         3,
		Tasks:         2,
		Blink:         time.Second,
		LinkIdle:      51 * time.Millisecond,
		SocketTimeout: 10 * time.Second,
	}
}

// BootError is a fatal error during boot. Code is the status code to
// display.
type BootError struct {
	Code int
	Err  error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("boot failed (status %d): %v", e.Code, e.Err)
}

func (e *BootError) Unwrap() error { return e.Err }

//----------------------------------------------------------------------

// Node holds everything that lives for the lifetime of the firmware:
// the scheduler, the network stack with its link, both tasks and the
// socket together with its buffers.
type Node struct {
	Sched  *Scheduler
	Stack  *Stack
	Socket *Socket
	Radio  Controller
	Blink  *BlinkTask
	Link   *LinkTask

	clock Clock
	rxBuf [SocketBufferSize]byte
	txBuf [SocketBufferSize]byte
}

// Boot builds a node on the device. Any error is fatal and returned as
// a *BootError.
func Boot(dev Device, cfg Config, clk Clock, logger *slog.Logger) (*Node, error) {
	logger = orDiscard(logger)
	if dev == nil {
		return nil, &BootError{StatDEV, ErrNoDevice}
	}
	n := &Node{clock: clk}
	n.Sched = NewScheduler(cfg.Tasks, clk, logger)

	n.Blink = NewBlinkTask(dev.LED, cfg.Blink)
	if _, err := n.Sched.Spawn("blink", n.Blink); err != nil {
		return nil, &BootError{StatTASK, err}
	}

	rc := cfg.Radio
	rc.Logger = logger
	link, ctrl, err := dev.InitRadio(rc)
	if err != nil {
		return nil, &BootError{StatRADIO, err}
	}
	n.Radio = ctrl

	n.Stack, err = NewStack(link, StackConfig{
		IPv4:   cfg.IPv4,
		Slots:  cfg.Slots,
		Seed:   cfg.Radio.Seed,
		Logger: logger,
	})
	if err != nil {
		return nil, &BootError{StatSTACK, err}
	}
	n.Link = NewLinkTask(n.Stack, cfg.LinkIdle)
	if _, err = n.Sched.Spawn("net", n.Link); err != nil {
		return nil, &BootError{StatTASK, err}
	}

	if n.Socket, err = NewSocket(n.Stack, n.rxBuf[:], n.txBuf[:]); err != nil {
		return nil, &BootError{StatSOCKET, err}
	}
	n.Socket.SetTimeout(cfg.SocketTimeout)

	if err = ctrl.Start(); err != nil {
		logger.Warn("wireless controller not started", slog.String("err", err.Error()))
	}
	return n, nil
}

// Run hands control to the scheduler.
func (n *Node) Run(ctx context.Context) error {
	return n.Sched.Run(ctx)
}

// Now returns the node's current time.
func (n *Node) Now() time.Time { return n.clock.Now() }
