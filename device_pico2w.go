//go:build rp2350

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
	"fmt"
	"log/slog"
	"machine"
	"net"
	"time"

	"github.com/soypat/cyw43439"
)

// Raspberry Pico2 W  [RP2350]
type Pico2WDevice struct {
	ref *cyw43439.Device // reference to device
}

// LED on or off (if applicable)
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// InitRadio brings up the CYW43439. The driver device is the link; it
// must only be used through the network stack from here on.
func (dev *Pico2WDevice) InitRadio(cfg RadioConfig) (Link, Controller, error) {
	logger := orDiscard(cfg.Logger)
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = logger
	logger.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err := dev.ref.Init(wificfg); err != nil {
		return nil, nil, fmt.Errorf("cyw43439 init: %w", err)
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))

	switch cfg.Mode {
	case ModeAccessPoint:
		// Beaconing and association belong to the controller, which is a
		// placeholder: the frame interface is usable without it.
		logger.Info("access point mode", slog.String("ssid", cfg.SSID))
	case ModeStation:
		var err error
		for range 5 {
			if err = dev.ref.JoinWPA2(cfg.SSID, cfg.Passwd); err == nil {
				break
			}
			logger.Error("wifi join failed", slog.String("err", err.Error()))
			time.Sleep(5 * time.Second)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("join %q: %w", cfg.SSID, err)
		}
	default:
		return nil, nil, ErrNotImplemented
	}
	mac, _ := dev.ref.HardwareAddr6()
	logger.Info("radio up", slog.String("mac", net.HardwareAddr(mac[:]).String()))
	return dev.ref, nopController{}, nil
}

// InitDevice initializes the device
func InitDevice() Device {
	// access device
	dev := new(Pico2WDevice)
	dev.ref = cyw43439.NewPicoWDevice()
	return dev
}

// ConsoleLogger writes log records to the serial console.
func ConsoleLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: level}))
}
