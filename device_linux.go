//go:build !rp2350

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
	"log/slog"
	"os"
	"sync/atomic"
)

// LinuxDevice (for testing purposes): the LED is a flag and the radio is
// an in-memory link.
type LinuxDevice struct {
	led  atomic.Bool
	link *MemLink
}

// LED on or off
func (dev *LinuxDevice) LED(on bool) { dev.led.Store(on) }

// LEDState returns the last LED level.
func (dev *LinuxDevice) LEDState() bool { return dev.led.Load() }

// Link returns the in-memory link once the radio is up (nil before).
func (dev *LinuxDevice) Link() *MemLink { return dev.link }

// InitRadio creates the in-memory link. Only access-point mode is
// supported.
func (dev *LinuxDevice) InitRadio(cfg RadioConfig) (Link, Controller, error) {
	if cfg.Mode != ModeAccessPoint {
		return nil, nil, ErrNotImplemented
	}
	// locally administered unicast address
	dev.link = NewMemLink([6]byte{0x02, 0x00, 0x5e, 0x00, 0x02, 0x01})
	orDiscard(cfg.Logger).Info("radio up",
		slog.String("mode", cfg.Mode.String()),
		slog.String("ssid", cfg.SSID),
	)
	return dev.link, nopController{}, nil
}

// InitDevice initializes the device
func InitDevice() Device {
	return new(LinuxDevice)
}

// ConsoleLogger writes log records to stderr.
func ConsoleLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
