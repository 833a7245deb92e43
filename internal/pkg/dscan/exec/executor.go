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

// Package exec runs plugin work units on a shared bounded worker pool,
// enforcing a per-unit timeout and converting success, failure and
// timeout into a uniform result envelope
package exec

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/time/rate"

	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

// DefaultTimeout is the per-unit execution limit
const DefaultTimeout = time.Hour

// Status of a finished execution
type Status int

// Execution statuses
const (
	Succeeded Status = iota
	Failed
)

// ExecutionError wraps an error returned or thrown by a plugin
type ExecutionError struct {
	Name  string
	Cause error
}

func (e *ExecutionError) Error() string {
	return "plugin execution error on '" + e.Name + "': " + e.Cause.Error()
}

// Unwrap returns the plugin's own error
func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError marks a work unit that exceeded the per-unit limit
type TimeoutError struct {
	Name  string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return "plugin '" + e.Name + "' exceeded the execution limit of " + e.Limit.String()
}

// Result is the envelope every execution resolves to. Data is set on
// success, Err on failure. Duration is measured on the monotonic clock.
type Result struct {
	Status     Status
	Data       interface{}
	Err        error
	Duration   time.Duration
	Descriptor plugin.Descriptor
}

// Unit is one plugin execution: the descriptor for logging and
// filtering, plus the callable holding the plugin logic
type Unit struct {
	Descriptor plugin.Descriptor
	Run        func(ctx context.Context) (interface{}, error)
}

// Config sizes the executor
type Config struct {
	// MaxWorkers bounds concurrent executions, 0 means min(32, cores*4)
	MaxWorkers int
	// Timeout per work unit, 0 means DefaultTimeout
	Timeout time.Duration
	// MaxSubmissionsPerSecond throttles unit starts, 0 means unthrottled
	MaxSubmissionsPerSecond int
}

// Executor is the process-wide execution engine shared by all scan
// phases
type Executor struct {
	swg     sizedwaitgroup.SizedWaitGroup
	timeout time.Duration
	lmt     *rate.Limiter
	counter *ratecounter.RateCounter
	xid     uint64
}

// New returns an initialized Executor
func New(cfg Config) *Executor {
	workers := cfg.MaxWorkers
	if workers == 0 {
		workers = runtime.NumCPU() * 4
		if workers > 32 {
			workers = 32
		}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	e := Executor{
		swg:     sizedwaitgroup.New(workers),
		timeout: timeout,
		counter: ratecounter.NewRateCounter(time.Second),
	}
	if cfg.MaxSubmissionsPerSecond > 0 {
		e.lmt = rate.NewLimiter(rate.Limit(cfg.MaxSubmissionsPerSecond), cfg.MaxSubmissionsPerSecond)
	}
	return &e
}

// Rate returns the number of executions completed during the last second
func (e *Executor) Rate() int64 {
	return e.counter.Rate()
}

// Execute submits u to the pool and returns a handle resolving to
// exactly one Result. The result is delivered even when the plugin does
// not observe cancellation; the runaway worker is then left to finish
// on its own.
func (e *Executor) Execute(ctx context.Context, u Unit) <-chan Result {
	out := make(chan Result, 1)
	xid := atomic.AddUint64(&e.xid, 1)

	go func() {
		if e.lmt != nil {
			if err := e.lmt.Wait(ctx); err != nil {
				out <- e.failed(u, 0, err, xid)
				return
			}
		}
		e.swg.Add()
		defer e.swg.Done()
		if err := ctx.Err(); err != nil {
			out <- e.failed(u, 0, err, xid)
			return
		}

		start := time.Now()
		runCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		done := make(chan struct{})
		var data interface{}
		var err error
		go func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("plugin panic: %v", r)
				}
			}()
			data, err = u.Run(runCtx)
		}()

		select {
		case <-done:
			elapsed := time.Since(start)
			if err != nil {
				// a unit observing cancellation usually surfaces the
				// deadline as its own error
				if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
					err = &TimeoutError{Name: u.Descriptor.Name, Limit: e.timeout}
				}
				out <- e.failed(u, elapsed, err, xid)
				return
			}
			e.counter.Incr(1)
			log.Info(log.M{Msg: "plugin execution finished in " +
				strconv.FormatInt(elapsed.Milliseconds(), 10) + " ms",
				Plugin: u.Descriptor.Name, XID: xid})
			out <- Result{
				Status:     Succeeded,
				Data:       data,
				Duration:   elapsed,
				Descriptor: u.Descriptor,
			}
		case <-runCtx.Done():
			elapsed := time.Since(start)
			cause := runCtx.Err()
			if cause == context.DeadlineExceeded && ctx.Err() == nil {
				cause = &TimeoutError{Name: u.Descriptor.Name, Limit: e.timeout}
			}
			out <- e.failed(u, elapsed, cause, xid)
		}
	}()

	return out
}

func (e *Executor) failed(u Unit, elapsed time.Duration, cause error, xid uint64) Result {
	e.counter.Incr(1)
	wrapped := cause
	switch cause.(type) {
	case *ExecutionError, *TimeoutError:
	default:
		wrapped = &ExecutionError{Name: u.Descriptor.Name, Cause: cause}
	}
	log.Warn(log.M{Msg: "plugin failed: " + cause.Error(),
		Plugin: u.Descriptor.Name, XID: xid})
	return Result{
		Status:     Failed,
		Err:        wrapped,
		Duration:   elapsed,
		Descriptor: u.Descriptor,
	}
}
