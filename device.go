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
	"log/slog"
)

// ErrNotImplemented is returned by collaborator boundaries that exist
// only as placeholders.
var ErrNotImplemented = errors.New("not implemented")

// Device is a hardware abstraction
type Device interface {
	// LED on or off (if applicable)
	LED(on bool)

	// InitRadio brings up the wireless chip. The returned link is the only
	// path to the radio's frame interface; the controller manages the
	// wireless side (beacons, associated peers).
	InitRadio(cfg RadioConfig) (Link, Controller, error)
}

// Link exchanges Ethernet frames with the radio. The method set matches
// the CYW43439 driver so the driver device is a Link as-is.
type Link interface {
	// HardwareAddr6 returns the MAC address of the interface.
	HardwareAddr6() ([6]byte, error)
	// SendEth transmits one Ethernet frame.
	SendEth(frame []byte) error
	// PollOne checks the radio for one incoming frame and passes it to the
	// receive handler. Reports whether a frame was handled.
	PollOne() (bool, error)
	// RecvEthHandle sets the receive handler for incoming frames.
	RecvEthHandle(handler func(frame []byte) error)
}

// Controller manages the wireless network (beacons, peer association).
type Controller interface {
	Start() error
	Stop() error
	Stations() ([][6]byte, error)
}

// WifiMode selects how the radio takes part in a wireless network.
type WifiMode uint8

// Wireless modes
const (
	ModeStation     WifiMode = iota // join an existing network
	ModeAccessPoint                 // originate the network
)

func (m WifiMode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeAccessPoint:
		return "access-point"
	}
	return "unknown"
}

// RadioConfig for radio bring-up.
type RadioConfig struct {
	Mode   WifiMode
	Seed   uint64 // randomization seed; a literal placeholder for now
	SSID   string
	Passwd string
	Logger *slog.Logger
}

//----------------------------------------------------------------------

// nopController stands in for wireless management that is not implemented.
type nopController struct{}

// Start beaconing (not implemented)
func (nopController) Start() error { return ErrNotImplemented }

// Stop beaconing (not implemented)
func (nopController) Stop() error { return ErrNotImplemented }

// Stations lists associated peers (not implemented)
func (nopController) Stations() ([][6]byte, error) { return nil, ErrNotImplemented }
