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
	"fmt"
	"net/netip"
	"path/filepath"
	"strings"
	"time"

	"github.com/bfix/apnode"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config of the simulator
type Config struct {
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Radio   RadioConfig   `mapstructure:"radio" yaml:"radio"`
	Timing  TimingConfig  `mapstructure:"timing" yaml:"timing"`
	Slots   int           `mapstructure:"slots" yaml:"slots"`
	Tasks   int           `mapstructure:"tasks" yaml:"tasks"`
	Inspect string        `mapstructure:"inspect" yaml:"inspect"` // 9p listen address; empty disables
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// NetworkConfig is the static IPv4 assignment.
type NetworkConfig struct {
	Address string   `mapstructure:"address" yaml:"address"`
	Gateway string   `mapstructure:"gateway" yaml:"gateway"`
	DNS     []string `mapstructure:"dns" yaml:"dns"`
}

// RadioConfig of the simulated access point.
type RadioConfig struct {
	SSID string `mapstructure:"ssid" yaml:"ssid"`
	Seed uint64 `mapstructure:"seed" yaml:"seed"`
}

// TimingConfig holds durations (Go duration syntax).
type TimingConfig struct {
	Blink         string `mapstructure:"blink" yaml:"blink"`
	LinkIdle      string `mapstructure:"link_idle" yaml:"link_idle"`
	SocketTimeout string `mapstructure:"socket_timeout" yaml:"socket_timeout"`
}

// LogConfig for the simulator logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	Trace bool   `mapstructure:"trace" yaml:"trace"` // log transmitted frames
}

// setDefaults from the firmware configuration.
func setDefaults(v *viper.Viper) {
	def := apnode.DefaultConfig()
	v.SetDefault("network.address", def.IPv4.Address.String())
	gw := ""
	if def.IPv4.Gateway.IsValid() {
		gw = def.IPv4.Gateway.String()
	}
	v.SetDefault("network.gateway", gw)
	v.SetDefault("network.dns", []string{})
	v.SetDefault("radio.ssid", def.Radio.SSID)
	v.SetDefault("radio.seed", def.Radio.Seed)
	v.SetDefault("timing.blink", def.Blink.String())
	v.SetDefault("timing.link_idle", def.LinkIdle.String())
	v.SetDefault("timing.socket_timeout", def.SocketTimeout.String())
	v.SetDefault("slots", def.Slots)
	v.SetDefault("tasks", def.Tasks)
	v.SetDefault("inspect", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.trace", false)
}

// Load the configuration from file (optional), environment (APNODE_*)
// and command line flags, in increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		filename := filepath.Base(path)
		fileExt := filepath.Ext(filename)
		v.SetConfigName(strings.TrimSuffix(filename, fileExt))
		v.SetConfigType(strings.TrimPrefix(fileExt, "."))
		v.AddConfigPath(filepath.Dir(path))
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("APNODE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if flags != nil {
		for _, key := range []string{"inspect", "log.level", "log.trace"} {
			if f := flags.Lookup(key); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// NodeConfig converts to the node configuration.
func (c *Config) NodeConfig() (cfg apnode.Config, err error) {
	cfg = apnode.DefaultConfig()
	addr, err := netip.ParsePrefix(c.Network.Address)
	if err != nil {
		return cfg, fmt.Errorf("network.address: %w", err)
	}
	var gw netip.Addr
	if c.Network.Gateway != "" {
		if gw, err = netip.ParseAddr(c.Network.Gateway); err != nil {
			return cfg, fmt.Errorf("network.gateway: %w", err)
		}
	}
	var dns []netip.Addr
	for _, s := range c.Network.DNS {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return cfg, fmt.Errorf("network.dns: %w", err)
		}
		dns = append(dns, a)
	}
	cfg.IPv4 = apnode.StaticConfigV4(addr, gw, dns...)
	if err = cfg.IPv4.Validate(); err != nil {
		return cfg, err
	}

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"timing.blink", c.Timing.Blink, &cfg.Blink},
		{"timing.link_idle", c.Timing.LinkIdle, &cfg.LinkIdle},
		{"timing.socket_timeout", c.Timing.SocketTimeout, &cfg.SocketTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = time.ParseDuration(d.val); err != nil {
			return cfg, fmt.Errorf("%s: %w", d.key, err)
		}
	}

	cfg.Radio.SSID = c.Radio.SSID
	cfg.Radio.Seed = c.Radio.Seed
	cfg.Slots = c.Slots
	cfg.Tasks = c.Tasks
	return cfg, nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
