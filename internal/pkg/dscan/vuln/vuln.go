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

// Package vuln defines the vulnerability model reported by detectors
package vuln

import (
	"time"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
)

// Severity of a vulnerability
type Severity int

// Severity levels, ordered
const (
	SeverityMinimal Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityMinimal:  "MINIMAL",
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "SEVERITY_UNSPECIFIED"
}

// ID identifies a vulnerability within a publisher namespace
type ID struct {
	Publisher string `json:"publisher"`
	Value     string `json:"value"`
}

// Vulnerability is an advisory reported by a detector
type Vulnerability struct {
	MainID      ID       `json:"main_id"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
}

// DetectionReport is a single detected vulnerability on a single service
type DetectionReport struct {
	ID            string             `json:"id,omitempty"`
	Target        network.TargetInfo `json:"target"`
	Service       network.Service    `json:"service"`
	Vulnerability Vulnerability      `json:"vulnerability"`
	Timestamp     time.Time          `json:"timestamp"`
}
