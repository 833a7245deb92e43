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

// Package report defines the final scan result record and its archiver
package report

import (
	"time"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	"github.com/defenxor/dscan/internal/pkg/shared/fs"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

// ScanStatus is the overall outcome of a scan
type ScanStatus int

// Scan statuses
const (
	Succeeded ScanStatus = iota
	PartiallySucceeded
	Failed
)

var statusNames = map[ScanStatus]string{
	Succeeded:          "SUCCEEDED",
	PartiallySucceeded: "PARTIALLY_SUCCEEDED",
	Failed:             "FAILED",
}

func (s ScanStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// ExitCode maps the status to the process exit code
func (s ScanStatus) ExitCode() int {
	switch s {
	case Succeeded:
		return 0
	case PartiallySucceeded:
		return 2
	default:
		return 1
	}
}

// Finding is one detected vulnerability in the final report
type Finding struct {
	Target        network.TargetInfo `json:"target"`
	Service       network.Service    `json:"service"`
	Vulnerability vuln.Vulnerability `json:"vulnerability"`
}

// ScanResults is the single record every scan produces, whatever
// happened during it
type ScanResults struct {
	ScanID        string              `json:"scan_id"`
	Status        ScanStatus          `json:"status"`
	StatusText    string              `json:"status_text"`
	StatusMessage string              `json:"status_message,omitempty"`
	Duration      time.Duration       `json:"duration_ns"`
	Recon         network.ReconReport `json:"reconnaissance_report"`
	Findings      []Finding           `json:"findings,omitempty"`
}

// FromDetection converts a detection report into a scan finding
func FromDetection(d vuln.DetectionReport) Finding {
	return Finding{
		Target:        d.Target,
		Service:       d.Service,
		Vulnerability: d.Vulnerability,
	}
}

// Archive writes r as indented JSON to path
func Archive(r ScanResults, path string) error {
	r.StatusText = r.Status.String()
	if err := fs.OverwriteFileValueIndent(r, path); err != nil {
		return err
	}
	log.Info(log.M{Msg: "scan results written to " + path, SID: r.ScanID})
	return nil
}
