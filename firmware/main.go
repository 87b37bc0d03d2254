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

package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bfix/apnode"
)

// WiFi credentials (set with -ldflags -X)
var (
	SSID   string
	Passwd string
)

// boot the access point and run forever
func main() {
	// access device
	dev := apnode.InitDevice()
	clk := apnode.SystemClock{}
	state := apnode.NewStatus(dev, clk)
	defer state.Trap()

	logger := apnode.ConsoleLogger(slog.LevelInfo)
	cfg := apnode.DefaultConfig()
	if SSID != "" {
		cfg.Radio.SSID = SSID
		cfg.Radio.Passwd = Passwd
	}
	node, err := apnode.Boot(dev, cfg, clk, logger)
	if err != nil {
		logger.Error("boot failed", slog.String("err", err.Error()))
		code := apnode.StatUNK
		var be *apnode.BootError
		if errors.As(err, &be) {
			code = be.Code
		}
		state.Halt(code)
	}

	// the scheduler only returns if something went badly wrong
	err = node.Run(context.Background())
	logger.Error("scheduler stopped", slog.Any("err", err))
	state.Halt(apnode.StatSCHED)
}
