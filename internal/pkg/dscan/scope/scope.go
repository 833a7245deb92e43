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

// Package scope guards which addresses a scan is allowed to touch,
// based on scope_*.json files in the config directory
package scope

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/yl2chen/cidranger"

	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

const (
	scopeFileGlob = "scope_*.json"
)

// NetworkScope represents a single entry in scope_*.json config file
type NetworkScope struct {
	Name     string `json:"name"`
	Cidr     string `json:"cidr"`
	Excluded bool   `json:"excluded"`
}

// NetworkScopes represents collection of NetworkScope
type NetworkScopes struct {
	Scope []NetworkScope `json:"scope"`
}

var allowed cidranger.Ranger
var excluded cidranger.Ranger
var nAllowed int
var initialized bool
var mu = sync.RWMutex{}

// Init read scopes from all scope_* files in confDir. Missing scope
// files leave the scanner unrestricted.
func Init(confDir string) error {
	mu.Lock()
	defer mu.Unlock()

	initialized = false
	nAllowed = 0
	allowed = cidranger.NewPCTrieRanger()
	excluded = cidranger.NewPCTrieRanger()

	p := path.Join(confDir, scopeFileGlob)
	files, _ := filepath.Glob(p)
	if len(files) == 0 {
		log.Debug(log.M{Msg: "No scope files in " + p + ", scanning is unrestricted"})
		return nil
	}

	var scopes NetworkScopes
	for i := range files {
		var s NetworkScopes
		file, err := os.Open(files[i])
		if err != nil {
			return err
		}
		defer file.Close()

		byteValue, _ := io.ReadAll(file)
		err = json.Unmarshal(byteValue, &s)
		if err != nil {
			return err
		}
		scopes.Scope = append(scopes.Scope, s.Scope...)
	}

	for i := range scopes.Scope {
		cidr := scopes.Scope[i].Cidr
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return errors.New("Cannot parse scope CIDR " + cidr)
		}
		entry := cidranger.NewBasicRangerEntry(*network)
		if scopes.Scope[i].Excluded {
			if err := excluded.Insert(entry); err != nil {
				return err
			}
			continue
		}
		if err := allowed.Insert(entry); err != nil {
			return err
		}
		nAllowed++
	}

	initialized = true
	log.Info(log.M{Msg: "Loaded " + strconv.Itoa(len(scopes.Scope)) +
		" scope entries from " + strconv.Itoa(len(files)) + " file(s)."})
	return nil
}

// IsAllowed tells whether ip may be scanned. Without scope files
// everything is allowed; with them, an IP must not be excluded and,
// when an allow list exists, must be inside it.
func IsAllowed(ip string) (ret bool, err error) {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return true, nil
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false, errors.New(ip + " is not a valid IP address")
	}
	if found, err := excluded.Contains(parsed); err != nil || found {
		return false, err
	}
	if nAllowed == 0 {
		return true, nil
	}
	ret, err = allowed.Contains(parsed)
	return
}
