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

package apm

import (
	"sync"

	"go.elastic.co/apm"
)

var enabled bool
var mu = sync.RWMutex{}

// Enabled returns whether apm is enabled
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Enable set apm status
func Enable(e bool) {
	mu.Lock()
	enabled = e
	mu.Unlock()
}

// Transaction wraps transaction from apm Default tracer and make it
// concurrency safe
type Transaction struct {
	sync.Mutex
	Tx    *apm.Transaction
	ended bool
}

// StartTransaction returns a mutex protected apm.Transaction
func StartTransaction(name, transactionType string) (tx *Transaction) {
	txObj := Transaction{}
	txObj.Tx = apm.DefaultTracer.StartTransaction(name, transactionType)
	tx = &txObj
	return
}

// Recover returns an apm.DefaultTracer.Recover function to be deferred
func (t *Transaction) Recover() {
	v := recover()
	if v == nil {
		return
	}
	e := apm.DefaultTracer.Recovered(v)
	e.SetTransaction(t.Tx)
	e.Send()
}

// SetCustom set custom value for the transaction
func (t *Transaction) SetCustom(key string, value string) {
	t.Lock()
	defer t.Unlock()
	if t.ended {
		return
	}
	defer t.Recover()
	t.Tx.Context.SetTag(key, value)
}

// Result set the result for the transaction
func (t *Transaction) Result(value string) {
	t.Lock()
	defer t.Unlock()
	if t.ended {
		return
	}
	t.Tx.Result = value
}

// SetError set and send error
func (t *Transaction) SetError(err error) {
	e := apm.DefaultTracer.NewError(err)
	e.SetTransaction(t.Tx)
	e.Send()
}

// End completes the transaction
func (t *Transaction) End() {
	t.Lock()
	defer t.Unlock()
	if t.ended {
		return
	}
	t.ended = true
	t.Tx.End()
}
