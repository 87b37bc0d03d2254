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
	"bytes"
	"fmt"
	"net"
	"sync"
	"text/tabwriter"
)

// NewInspectFS builds a read-only namespace that shows the state of a node:
//
//	/config    static IPv4 assignment and slot table size
//	/tasks     task table of the scheduler
//	/stack     frame counters of the network stack
//	/sockets   bound sockets
//	/led       blink task output
//
// Files are rendered while holding mu, which must also be held by
// whoever drives the node's scheduler.
func NewInspectFS(node *Node, mu sync.Locker) (*Namespace, error) {
	ns := NewNamespace("apnode", "apnode")
	files := []struct {
		name   string
		render func(*bytes.Buffer)
	}{
		{"config", node.renderConfig},
		{"tasks", node.renderTasks},
		{"stack", node.renderStack},
		{"sockets", node.renderSockets},
		{"led", node.renderLED},
	}
	for _, f := range files {
		if err := ns.NewFile("/"+f.name, 0444, NewViewFile(mu, f.render)); err != nil {
			return nil, err
		}
	}
	return ns, nil
}

func (n *Node) renderConfig(buf *bytes.Buffer) {
	cfg := n.Stack.Config()
	mac := n.Stack.HardwareAddr()
	fmt.Fprintf(buf, "mac      %s\n", net.HardwareAddr(mac[:]))
	fmt.Fprintf(buf, "address  %s\n", cfg.Address)
	if cfg.Gateway.IsValid() {
		fmt.Fprintf(buf, "gateway  %s\n", cfg.Gateway)
	}
	for _, a := range cfg.DNS {
		fmt.Fprintf(buf, "dns      %s\n", a)
	}
	fmt.Fprintf(buf, "slots    %d\n", n.Stack.Slots())
}

func (n *Node) renderTasks(buf *bytes.Buffer) {
	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tPOLLS")
	for _, t := range n.Sched.Tasks() {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", t.ID, t.Name, t.State, t.Polls)
	}
	w.Flush()
}

func (n *Node) renderStack(buf *bytes.Buffer) {
	st := n.Stack.Stats()
	fmt.Fprintf(buf, "rx %d dropped %d\n", st.RxFrames, st.RxDropped)
	fmt.Fprintf(buf, "tx %d dropped %d\n", st.TxFrames, st.TxDropped)
	fmt.Fprintf(buf, "errors %d\n", st.Errors)
	fmt.Fprintf(buf, "free slots %d/%d\n", n.Stack.FreeSlots(), n.Stack.Slots())
}

func (n *Node) renderSockets(buf *bytes.Buffer) {
	w := tabwriter.NewWriter(buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLOT\tSTATE\tSHUT\tTIMEOUT\tIDLE\tRX\tTX")
	for _, s := range n.Stack.Sockets(n.Now()) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%d\n", s.Slot, s.State, s.Shutdown, s.Timeout, s.Idle, s.RxBuffered, s.TxBuffered)
	}
	w.Flush()
}

func (n *Node) renderLED(buf *bytes.Buffer) {
	level := "off"
	if n.Blink.Level() {
		level = "on"
	}
	fmt.Fprintf(buf, "%s %d\n", level, n.Blink.Toggles())
}
