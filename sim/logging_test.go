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

package main

import (
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogrusHandler(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.InfoLevel)
	logger := slog.New(newLogrusHandler(log))

	logger.Debug("hidden")
	assert.Empty(t, hook.AllEntries())

	logger.With("slot", 1).WithGroup("tcp").Warn("socket idle timeout", "port", 80)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "socket idle timeout", entry.Message)
	assert.EqualValues(t, 1, entry.Data["slot"])
	assert.EqualValues(t, 80, entry.Data["tcp.port"])

	logger.Error("radio down")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.NotContains(t, hook.LastEntry().Data, "slot", "attributes stay with the derived logger")
}

func TestToLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.ErrorLevel, toLogrusLevel(slog.LevelError+4))
	assert.Equal(t, logrus.WarnLevel, toLogrusLevel(slog.LevelWarn))
	assert.Equal(t, logrus.InfoLevel, toLogrusLevel(slog.LevelInfo))
	assert.Equal(t, logrus.DebugLevel, toLogrusLevel(slog.LevelDebug))
	assert.Equal(t, logrus.TraceLevel, toLogrusLevel(slog.LevelDebug-4))
}

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, newLogger(LogConfig{Level: "debug"}).GetLevel())
	assert.Equal(t, logrus.InfoLevel, newLogger(LogConfig{Level: "loud"}).GetLevel())
}
