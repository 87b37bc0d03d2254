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

// apsim runs the access point node on the host: the radio is an in-memory
// link, the LED a flag. The node state can be inspected over 9p:
//
//	apsim -c apsim.yaml --inspect :5640
//	9p -a tcp!localhost!5640 read tasks
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bfix/apnode"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// idle period if no task has a deadline
const idle = 10 * time.Millisecond

func main() {
	flags := pflag.NewFlagSet("apsim", pflag.ExitOnError)
	cfgFile := flags.StringP("config", "c", "", "configuration file")
	flags.String("inspect", "", "9p listen address of the inspect namespace")
	flags.String("log.level", "info", "log level")
	flags.Bool("log.trace", false, "log transmitted frames")
	run := flags.Duration("run", 0, "stop after the given time (0 runs until interrupted)")
	_ = flags.Parse(os.Args[1:])

	cfg, err := Load(*cfgFile, flags)
	if err != nil {
		logrus.WithError(err).Fatal("configuration")
	}
	log := newLogger(cfg.Log)
	ncfg, err := cfg.NodeConfig()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	dev := new(apnode.LinuxDevice)
	node, err := apnode.Boot(dev, ncfg, apnode.SystemClock{}, slog.New(newLogrusHandler(log)))
	if err != nil {
		log.WithError(err).Fatal("boot")
	}
	if cfg.Log.Trace {
		dev.Link().Observe(frameTracer(log))
	}

	var mu sync.Mutex
	if cfg.Inspect != "" {
		if err = serveInspect(node, &mu, cfg, log); err != nil {
			log.WithError(err).Fatal("inspect")
		}
		log.WithField("listen", cfg.Inspect).Info("serving inspect namespace")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *run > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *run)
		defer cancel()
	}
	err = drive(ctx, node, &mu)

	mu.Lock()
	defer mu.Unlock()
	st := node.Stack.Stats()
	log.WithFields(logrus.Fields{
		"reason":  err,
		"toggles": node.Blink.Toggles(),
		"polls":   node.Link.Polls(),
		"tx":      st.TxFrames,
		"rx":      st.RxFrames,
	}).Info("simulation stopped")
}

// serveInspect starts the 9p server for the node state.
func serveInspect(node *apnode.Node, mu *sync.Mutex, cfg *Config, log *logrus.Logger) error {
	ns, err := apnode.NewInspectFS(node, mu)
	if err != nil {
		return err
	}
	raw, err := cfg.YAML()
	if err != nil {
		return err
	}
	if err = ns.NewFile("/sim.yaml", 0444, apnode.TextFile(raw)); err != nil {
		return err
	}
	go func() {
		if err := ns.Serve(cfg.Inspect); err != nil {
			log.WithError(err).Error("inspect server stopped")
		}
	}()
	return nil
}

// drive runs the scheduler of the node until the context is done. The
// lock is held while a task runs and released while idle, so the
// inspect server sees consistent state.
func drive(ctx context.Context, node *apnode.Node, mu *sync.Mutex) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		mu.Lock()
		ran := node.Sched.Step()
		wake, ok := node.Sched.NextWake()
		now := node.Now()
		mu.Unlock()
		if ran {
			continue
		}
		d := idle
		if ok {
			d = wake.Sub(now)
		}
		if d <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
	}
}
