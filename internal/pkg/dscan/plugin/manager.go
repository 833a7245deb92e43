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

import (
	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

// Manager is the query API over the registry: enumerate port scanners,
// pick a fingerprinter for a service, compute the detectors applicable
// to a reconnaissance report. All result lists preserve registry
// registration order.
type Manager struct {
	reg     *Registry
	include map[string]struct{} // nil when no include filter is set
	exclude map[string]struct{} // nil when no exclude filter is set
}

// NewManager returns a manager over reg applying the given detector
// include/exclude name filters. A nil or empty slice means the filter is
// not set. Include names that match no registered plugin are filtered
// silently, with a warning so operators can spot typos.
func NewManager(reg *Registry, include, exclude []string) *Manager {
	m := Manager{reg: reg}
	if len(include) > 0 {
		m.include = make(map[string]struct{}, len(include))
		for _, name := range include {
			if _, ok := reg.ByName(name); !ok {
				log.Warn(log.M{Msg: "detectors-include references unknown plugin " + name})
			}
			m.include[name] = struct{}{}
		}
	}
	if len(exclude) > 0 {
		m.exclude = make(map[string]struct{}, len(exclude))
		for _, name := range exclude {
			m.exclude[name] = struct{}{}
		}
	}
	return &m
}

// PortScanners returns every installed port scanner
func (m *Manager) PortScanners() (out []PortScannerMatch) {
	for _, e := range m.reg.AllOfKind(PortScan) {
		out = append(out, PortScannerMatch{
			Descriptor: e.Descriptor,
			Scanner:    e.Plugin.(PortScanner),
		})
	}
	return
}

// PortScanner returns the first installed port scanner in registration
// order, if any
func (m *Manager) PortScanner() (PortScannerMatch, bool) {
	all := m.PortScanners()
	if len(all) == 0 {
		return PortScannerMatch{}, false
	}
	return all[0], true
}

// ServiceFingerprinter returns the first fingerprinter whose selectors
// match service. A fingerprinter without any selector is skipped:
// fingerprinting requires declared intent.
func (m *Manager) ServiceFingerprinter(service network.Service) (FingerprinterMatch, bool) {
	for _, e := range m.reg.AllOfKind(ServiceFingerprint) {
		if e.Descriptor.Selectors.Empty() {
			continue
		}
		if !MatchesService(e.Descriptor.Selectors, service) {
			continue
		}
		return FingerprinterMatch{
			Descriptor:      e.Descriptor,
			Fingerprinter:   e.Plugin.(ServiceFingerprinter),
			MatchedServices: []network.Service{service},
		}, true
	}
	return FingerprinterMatch{}, false
}

// VulnDetectors computes the detectors applicable to recon. A regular
// detector is included iff its OS predicate holds and it matched at
// least one service. A remote detector is always included once it
// passes the name filters; its sub-definitions each get their own,
// possibly empty, matched service list.
func (m *Manager) VulnDetectors(recon network.ReconReport) (out []DetectorMatch) {
	for _, e := range m.reg.All() {
		switch e.Descriptor.Kind {
		case VulnDetection:
			if !m.detectorEnabled(e.Descriptor.Name) {
				continue
			}
			if !MatchesOs(e.Descriptor.Selectors, recon.Target) {
				continue
			}
			matched := FilterServices(e.Descriptor.Selectors, recon.Services, recon.Target)
			if len(matched) == 0 {
				continue
			}
			out = append(out, DetectorMatch{
				Descriptor:      e.Descriptor,
				Detector:        e.Plugin.(VulnDetector),
				MatchedServices: matched,
			})
		case RemoteVulnDetection:
			if !m.detectorEnabled(e.Descriptor.Name) {
				continue
			}
			remote := e.Plugin.(RemoteVulnDetector)
			subs := remote.AllPlugins()
			matchedPlugins := make([]MatchedPlugin, 0, len(subs))
			for _, sub := range subs {
				matchedPlugins = append(matchedPlugins, MatchedPlugin{
					Plugin:   sub,
					Services: FilterServices(sub.Selectors, recon.Services, recon.Target),
				})
			}
			out = append(out, DetectorMatch{
				Descriptor:     e.Descriptor,
				Remote:         remote,
				MatchedPlugins: matchedPlugins,
			})
		}
	}
	return
}

// Advisories collects the advisories of every installed detector in
// registration order
func (m *Manager) Advisories() (out []vuln.Vulnerability) {
	for _, e := range m.reg.All() {
		switch e.Descriptor.Kind {
		case VulnDetection:
			out = append(out, e.Plugin.(VulnDetector).Advisories()...)
		case RemoteVulnDetection:
			out = append(out, e.Plugin.(RemoteVulnDetector).Advisories()...)
		}
	}
	return
}

func (m *Manager) detectorEnabled(name string) bool {
	if m.include != nil {
		if _, ok := m.include[name]; !ok {
			return false
		}
	}
	if m.exclude != nil {
		if _, ok := m.exclude[name]; ok {
			return false
		}
	}
	return true
}
