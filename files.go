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
	"sync"
)

// File is a read-only node of the namespace. Read returns the complete
// content and is called for every 9p read of the file.
type File interface {
	Read() ([]byte, error)
}

// emptyFile has no content.
type emptyFile struct{}

func (emptyFile) Read() ([]byte, error) { return nil, nil }

//----------------------------------------------------------------------

// TextFile with fixed text content.
type TextFile string

// Read returns the text.
func (f TextFile) Read() ([]byte, error) {
	return []byte(f), nil
}

//----------------------------------------------------------------------

// ViewFile shows live state: its content is rendered into a fresh
// buffer on every read. The render function runs with mu held, so it
// sees the state between two scheduler steps of the node.
type ViewFile struct {
	mu     sync.Locker
	render func(*bytes.Buffer)
}

// NewViewFile for the given render function. mu may be nil if render
// looks at nothing that changes concurrently.
func NewViewFile(mu sync.Locker, render func(*bytes.Buffer)) *ViewFile {
	return &ViewFile{
		mu:     mu,
		render: render,
	}
}

// Read renders the current content.
func (f *ViewFile) Read() ([]byte, error) {
	if f.mu != nil {
		f.mu.Lock()
		defer f.mu.Unlock()
	}
	buf := new(bytes.Buffer)
	f.render(buf)
	return buf.Bytes(), nil
}
