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

package exec

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

func desc(name string) plugin.Descriptor {
	return plugin.Descriptor{Kind: plugin.VulnDetection, Name: name}
}

func TestExecuteSucceeded(t *testing.T) {
	log.Setup(false)
	e := New(Config{})

	before := time.Now()
	res := <-e.Execute(context.Background(), Unit{
		Descriptor: desc("ok"),
		Run: func(ctx context.Context) (interface{}, error) {
			time.Sleep(10 * time.Millisecond)
			return "data", nil
		},
	})
	elapsed := time.Since(before)

	if res.Status != Succeeded {
		t.Fatal("expected Succeeded, got err:", res.Err)
	}
	if res.Data.(string) != "data" {
		t.Error("unexpected data:", res.Data)
	}
	if res.Duration <= 0 || res.Duration > elapsed {
		t.Error("duration out of bounds:", res.Duration, "elapsed:", elapsed)
	}
	if res.Descriptor.Name != "ok" {
		t.Error("unexpected descriptor:", res.Descriptor.Name)
	}
}

func TestExecuteFailed(t *testing.T) {
	log.Setup(false)
	e := New(Config{})

	cause := errors.New("boom")
	res := <-e.Execute(context.Background(), Unit{
		Descriptor: desc("bad"),
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, cause
		},
	})
	if res.Status != Failed {
		t.Fatal("expected Failed")
	}
	var xerr *ExecutionError
	if !errors.As(res.Err, &xerr) {
		t.Fatal("expected ExecutionError, got:", res.Err)
	}
	if xerr.Name != "bad" || !errors.Is(res.Err, cause) {
		t.Error("unexpected wrapping:", res.Err)
	}

	// an error that is already an ExecutionError is not wrapped again
	already := &ExecutionError{Name: "inner", Cause: cause}
	res = <-e.Execute(context.Background(), Unit{
		Descriptor: desc("bad2"),
		Run: func(ctx context.Context) (interface{}, error) {
			return nil, already
		},
	})
	if res.Err != already {
		t.Error("expected error to pass through unwrapped, got:", res.Err)
	}
}

func TestExecutePanic(t *testing.T) {
	log.Setup(false)
	e := New(Config{})

	res := <-e.Execute(context.Background(), Unit{
		Descriptor: desc("panicky"),
		Run: func(ctx context.Context) (interface{}, error) {
			panic("oops")
		},
	})
	if res.Status != Failed {
		t.Fatal("expected Failed")
	}
	var xerr *ExecutionError
	if !errors.As(res.Err, &xerr) {
		t.Fatal("expected ExecutionError, got:", res.Err)
	}
}

func TestExecuteTimeout(t *testing.T) {
	log.Setup(false)
	e := New(Config{Timeout: 50 * time.Millisecond})

	res := <-e.Execute(context.Background(), Unit{
		Descriptor: desc("slow"),
		Run: func(ctx context.Context) (interface{}, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return "late", nil
			}
		},
	})
	if res.Status != Failed {
		t.Fatal("expected Failed")
	}
	var terr *TimeoutError
	if !errors.As(res.Err, &terr) {
		t.Fatal("expected TimeoutError, got:", res.Err)
	}
	if terr.Name != "slow" || terr.Limit != 50*time.Millisecond {
		t.Error("unexpected timeout error:", terr)
	}
}

func TestExecuteUncancellable(t *testing.T) {
	log.Setup(false)
	e := New(Config{Timeout: 50 * time.Millisecond})

	// the unit ignores cancellation; the result must still resolve once
	// the timeout expires
	start := time.Now()
	res := <-e.Execute(context.Background(), Unit{
		Descriptor: desc("stuck"),
		Run: func(ctx context.Context) (interface{}, error) {
			time.Sleep(2 * time.Second)
			return "late", nil
		},
	})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Error("result not delivered within bounded time:", elapsed)
	}
	if res.Status != Failed {
		t.Fatal("expected Failed")
	}
	var terr *TimeoutError
	if !errors.As(res.Err, &terr) {
		t.Fatal("expected TimeoutError, got:", res.Err)
	}
}

func TestExecuteBoundedPool(t *testing.T) {
	log.Setup(false)
	e := New(Config{MaxWorkers: 1})

	var active, maxActive int32
	unit := Unit{
		Descriptor: desc("bounded"),
		Run: func(ctx context.Context) (interface{}, error) {
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&active, -1)
			return nil, nil
		},
	}

	var handles []<-chan Result
	for i := 0; i < 4; i++ {
		handles = append(handles, e.Execute(context.Background(), unit))
	}
	for _, h := range handles {
		<-h
	}
	if atomic.LoadInt32(&maxActive) != 1 {
		t.Error("expected max 1 concurrent execution, got", maxActive)
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	log.Setup(false)
	e := New(Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := <-e.Execute(ctx, Unit{
		Descriptor: desc("cancelled"),
		Run: func(ctx context.Context) (interface{}, error) {
			return "never", nil
		},
	})
	if res.Status != Failed {
		t.Fatal("expected Failed for cancelled context")
	}
}
