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

package logger

import (
	"strings"
	"testing"
)

func TestSetup(t *testing.T) {
	if err := Setup(true); err != nil {
		t.Fatal("Cannot setup logger in debug mode:", err)
	}
	if err := Setup(false); err != nil {
		t.Fatal("Cannot setup logger in production mode:", err)
	}
}

func TestCaptureOutput(t *testing.T) {
	EnableTestingMode()

	out := CaptureZapOutput(func() {
		Info(M{Msg: "info message", Plugin: "NmapPortScanner", Phase: "port-scan"})
	})
	for _, term := range []string{"info message", "NmapPortScanner", "port-scan"} {
		if !strings.Contains(out, term) {
			t.Errorf("expected output to contain %s, got: %s", term, out)
		}
	}

	out = CaptureZapOutput(func() {
		Warn(M{Msg: "warn message", SID: "scan-1", XID: 42})
	})
	for _, term := range []string{"warn message", "scan-1", "42"} {
		if !strings.Contains(out, term) {
			t.Errorf("expected output to contain %s, got: %s", term, out)
		}
	}

	out = CaptureZapOutput(func() {
		Debug(M{Msg: "debug message"})
		Error(M{Msg: "error message"})
		InfoMsg("plain message")
	})
	for _, term := range []string{"debug message", "error message", "plain message"} {
		if !strings.Contains(out, term) {
			t.Errorf("expected output to contain %s, got: %s", term, out)
		}
	}
}
