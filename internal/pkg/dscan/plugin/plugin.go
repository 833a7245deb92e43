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

// Package plugin provides the descriptor model, the selector matcher,
// the process-wide plugin registry, and the query-facing plugin manager
package plugin

import (
	"context"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
)

// PortScanner discovers open services on a target
type PortScanner interface {
	Scan(ctx context.Context, target network.TargetInfo) (network.PortScanReport, error)
}

// ServiceFingerprinter enriches a single service with detected
// software, version and context
type ServiceFingerprinter interface {
	Fingerprint(ctx context.Context, target network.TargetInfo, service network.Service) (network.FingerprintReport, error)
}

// VulnDetector reports vulnerabilities for the services matched to it
type VulnDetector interface {
	Detect(ctx context.Context, target network.TargetInfo, matched []network.Service) ([]vuln.DetectionReport, error)
	Advisories() []vuln.Vulnerability
}

// MatchedPlugin pairs one logical plugin definition served by a remote
// detector with the services matched to it. The list may be empty.
type MatchedPlugin struct {
	Plugin   Descriptor        `json:"plugin"`
	Services []network.Service `json:"services"`
}

// RemoteVulnDetector is one runtime object fronting many logical
// detector definitions, e.g. plugins served by an external language
// runtime. The manager computes the per-definition matches and the
// workflow hands them over in a single DetectMatched call.
type RemoteVulnDetector interface {
	AllPlugins() []Descriptor
	DetectMatched(ctx context.Context, target network.TargetInfo, matched []MatchedPlugin) ([]vuln.DetectionReport, error)
	Advisories() []vuln.Vulnerability
}

// PortScannerMatch is a port scanner selected by the manager. Port
// scanners run before services exist, so there are no matched services.
type PortScannerMatch struct {
	Descriptor Descriptor
	Scanner    PortScanner
}

// FingerprinterMatch is a fingerprinter selected for one service
type FingerprinterMatch struct {
	Descriptor      Descriptor
	Fingerprinter   ServiceFingerprinter
	MatchedServices []network.Service
}

// DetectorMatch is a detector selected for a reconnaissance report.
// Remote is non-nil for remote detectors, in which case MatchedPlugins
// carries the per-definition service lists and MatchedServices is
// empty.
type DetectorMatch struct {
	Descriptor      Descriptor
	Detector        VulnDetector
	Remote          RemoteVulnDetector
	MatchedServices []network.Service
	MatchedPlugins  []MatchedPlugin
}
