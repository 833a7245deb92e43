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

package network

// PortScanReport is the phase 1 output: target info plus the services
// discovered on it
type PortScanReport struct {
	Target   TargetInfo `json:"target"`
	Services []Service  `json:"services"`
}

// FingerprintReport is produced per service by a fingerprinter; the
// enriched services replace the original ones keyed by
// endpoint+transport+port
type FingerprintReport struct {
	Services []Service `json:"services"`
}

// ReconReport is the fingerprint-enriched view of the target handed to
// vuln detectors
type ReconReport struct {
	Target   TargetInfo `json:"target"`
	Services []Service  `json:"services"`
}
