// Copyright (c) 2019 PT Defender Nusa Semesta and contributors, All rights reserved.
//
// This file is part of Dscan.
//
// Dscan is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation version 3 of the License.
//
// Dscan is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Dscan. If not, see <https://www.gnu.org/licenses/>.

package plugin

import (
	"errors"
	"sync"
)

// Bootstrap creates a plugin instance and its descriptor at registry
// build time. Built-in plugins register one from their init func,
// additional ones (remote detector clients, test fakes) are passed to
// NewRegistry directly.
type Bootstrap func() (Descriptor, interface{}, error)

var bootstrapLock = sync.Mutex{}
var bootstraps []Bootstrap

// RegisterBootstrap adds a bootstrap to the process-wide list consumed
// by DefaultBootstraps
func RegisterBootstrap(b Bootstrap) {
	bootstrapLock.Lock()
	bootstraps = append(bootstraps, b)
	bootstrapLock.Unlock()
}

// DefaultBootstraps returns the bootstraps registered so far, in
// registration order
func DefaultBootstraps() []Bootstrap {
	bootstrapLock.Lock()
	defer bootstrapLock.Unlock()
	out := make([]Bootstrap, len(bootstraps))
	copy(out, bootstraps)
	return out
}

// Entry pairs a descriptor with its plugin instance
type Entry struct {
	Descriptor Descriptor
	Plugin     interface{}
}

// Registry is the process-wide plugin catalog. It is built once at
// startup and immutable afterwards, so reads need no locking.
type Registry struct {
	entries []Entry
	byName  map[string]int
}

// NewRegistry builds a registry by running every bootstrap in order.
// Duplicate names and kind/interface mismatches are build errors, which
// the caller treats as fatal.
func NewRegistry(boots []Bootstrap) (*Registry, error) {
	r := Registry{byName: make(map[string]int)}
	for _, b := range boots {
		d, p, err := b()
		if err != nil {
			return nil, err
		}
		if d.Name == "" {
			return nil, errors.New("plugin descriptor has no name")
		}
		if _, used := r.byName[d.Name]; used {
			return nil, errors.New(d.Name + " is already used as a name by other plugin")
		}
		if err := checkKind(d, p); err != nil {
			return nil, err
		}
		r.byName[d.Name] = len(r.entries)
		r.entries = append(r.entries, Entry{Descriptor: d, Plugin: p})
	}
	return &r, nil
}

func checkKind(d Descriptor, p interface{}) error {
	ok := false
	switch d.Kind {
	case PortScan:
		_, ok = p.(PortScanner)
	case ServiceFingerprint:
		_, ok = p.(ServiceFingerprinter)
	case VulnDetection:
		_, ok = p.(VulnDetector)
	case RemoteVulnDetection:
		_, ok = p.(RemoteVulnDetector)
	}
	if !ok {
		return errors.New(d.Name + " does not implement the " + d.Kind.String() + " interface")
	}
	return nil
}

// All returns every entry in registration order
func (r *Registry) All() []Entry {
	return r.entries
}

// AllOfKind returns entries of the given kind preserving registration
// order
func (r *Registry) AllOfKind(k Kind) (out []Entry) {
	for _, e := range r.entries {
		if e.Descriptor.Kind == k {
			out = append(out, e)
		}
	}
	return
}

// ByName looks up an entry by its unique descriptor name
func (r *Registry) ByName(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}
