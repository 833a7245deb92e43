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

package plugin

// Kind tags what a plugin does
type Kind int

// Plugin kinds
const (
	PortScan Kind = iota
	ServiceFingerprint
	VulnDetection
	RemoteVulnDetection
)

var kindNames = map[Kind]string{
	PortScan:            "PORT_SCAN",
	ServiceFingerprint:  "SERVICE_FINGERPRINT",
	VulnDetection:       "VULN_DETECTION",
	RemoteVulnDetection: "REMOTE_VULN_DETECTION",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// OsClassSelector restricts a plugin to targets whose OS guesses match.
// Empty Vendors or OsFamilies means no constraint on that dimension.
type OsClassSelector struct {
	Vendors     []string `json:"vendors,omitempty"`
	OsFamilies  []string `json:"os_families,omitempty"`
	MinAccuracy int      `json:"min_accuracy,omitempty"`
}

// Selectors declares which services and targets a plugin applies to.
// All fields are optional; an absent field matches everything.
type Selectors struct {
	ServiceNames  []string         `json:"service_names,omitempty"`
	Software      string           `json:"software,omitempty"`
	OsClass       *OsClassSelector `json:"os_class,omitempty"`
	ForWebService bool             `json:"for_web_service,omitempty"`
}

// Empty tells whether no selector is declared at all
func (s Selectors) Empty() bool {
	return len(s.ServiceNames) == 0 && s.Software == "" &&
		s.OsClass == nil && !s.ForWebService
}

// hasServiceConstraint tells whether any service-level selector is
// declared. The OS selector is target-level, not service-level.
func (s Selectors) hasServiceConstraint() bool {
	return len(s.ServiceNames) > 0 || s.Software != "" || s.ForWebService
}

// Descriptor is the immutable identity record of a plugin. Name is
// unique within a process and is the identity used by the detector
// include/exclude filters.
type Descriptor struct {
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Selectors   Selectors `json:"selectors,omitempty"`
}
