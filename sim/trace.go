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
	"encoding/binary"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
)

// ethernet types
const (
	etherTypeIPv4 = 0x0800
	etherTypeARP  = 0x0806
	ethHeaderLen  = 14
)

// describeFrame summarizes an Ethernet frame for logging.
func describeFrame(frame []byte) (string, logrus.Fields) {
	fields := logrus.Fields{"len": len(frame)}
	if len(frame) < ethHeaderLen {
		return "runt frame", fields
	}
	fields["dst"] = net.HardwareAddr(frame[0:6]).String()
	fields["src"] = net.HardwareAddr(frame[6:12]).String()
	switch etype := binary.BigEndian.Uint16(frame[12:14]); etype {
	case etherTypeARP:
		return "arp", fields
	case etherTypeIPv4:
		hdr, err := ipv4.ParseHeader(frame[ethHeaderLen:])
		if err != nil {
			fields["err"] = err.Error()
			return "malformed ipv4", fields
		}
		fields["ip.src"] = hdr.Src.String()
		fields["ip.dst"] = hdr.Dst.String()
		fields["ip.proto"] = hdr.Protocol
		fields["ip.ttl"] = hdr.TTL
		return "ipv4", fields
	default:
		fields["type"] = fmt.Sprintf("%#04x", etype)
		return "ethernet", fields
	}
}

// frameTracer logs every transmitted frame.
func frameTracer(log *logrus.Logger) func([]byte) {
	return func(frame []byte) {
		what, fields := describeFrame(frame)
		log.WithFields(fields).Debug("tx " + what)
	}
}
