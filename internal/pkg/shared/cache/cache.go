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

// Package cache wraps bigcache for memoizing lookup results, e.g.
// fingerprinter output for an endpoint that appears in multiple scans
package cache

import (
	"time"

	"github.com/allegro/bigcache"
)

// Cache is a wrapper around bigcache
type Cache struct {
	ID    string
	cache *bigcache.BigCache
}

// New returns an initialized cache named name whose entries expire after
// lifetimeMinutes
func New(name string, lifetimeMinutes int, shards int) (*Cache, error) {
	c := Cache{}
	c.ID = name
	// default to 10 minutes
	if lifetimeMinutes == 0 {
		lifetimeMinutes = 10
	}
	if shards == 0 {
		shards = 128
	}
	config := bigcache.Config{
		// number of shards, must be a power of 2
		Shards:     shards,
		LifeWindow: time.Duration(lifetimeMinutes) * time.Minute,
		// rps * lifeWindow, used only in initial memory allocation
		MaxEntriesInWindow: shards * lifetimeMinutes * 60,
		// max entry size in bytes, used only in initial memory allocation
		MaxEntrySize: 500,
		Verbose:      false,
		// max memory in MB before the oldest entries are overridden, 0 = no limit
		HardMaxCacheSize: shards,
	}

	p, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, err
	}
	c.cache = p
	return &c, nil
}

// Set store the key value in cache
func (c *Cache) Set(key string, value []byte) {
	c.cache.Set(key, value)
}

// Get returns value of key from cache
func (c *Cache) Get(key string) (value []byte, err error) {
	value, err = c.cache.Get(key)
	return
}
