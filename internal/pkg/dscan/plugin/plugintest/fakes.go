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

// Package plugintest provides fake plugins for registry, manager,
// executor and workflow tests
package plugintest

import (
	"context"
	"errors"
	"time"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
)

// FakeTime is the fixed timestamp all fake detection reports carry
var FakeTime = time.Date(2019, time.November, 18, 10, 0, 0, 0, time.UTC)

// Bootstrap wraps a ready descriptor and instance into a
// plugin.Bootstrap
func Bootstrap(d plugin.Descriptor, p interface{}) plugin.Bootstrap {
	return func() (plugin.Descriptor, interface{}, error) {
		return d, p, nil
	}
}

// FakeService is the service the fake port scanner reports on every
// target endpoint
func FakeService(e network.Endpoint) network.Service {
	return network.Service{
		Endpoint:  e.WithPort(80),
		Transport: network.TCP,
		Name:      "http",
	}
}

// FakePortScanner reports one http service on each of the target's
// endpoints
type FakePortScanner struct{}

// Scan implement plugin.PortScanner
func (s FakePortScanner) Scan(ctx context.Context, target network.TargetInfo) (network.PortScanReport, error) {
	report := network.PortScanReport{Target: target}
	for _, e := range target.Endpoints {
		report.Services = append(report.Services, FakeService(e))
	}
	return report, nil
}

// FakePortScannerBootstrap registers a FakePortScanner named
// FakePortScanner
func FakePortScannerBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.PortScan, Name: "FakePortScanner", Version: "v0.1", Author: "fake",
	}, FakePortScanner{})
}

// FakePortScanner2Bootstrap registers a second FakePortScanner to test
// registration ordering
func FakePortScanner2Bootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.PortScan, Name: "FakePortScanner2", Version: "v0.1", Author: "fake",
	}, FakePortScanner{})
}

// FailingPortScanner always fails
type FailingPortScanner struct{}

// Scan implement plugin.PortScanner
func (s FailingPortScanner) Scan(ctx context.Context, target network.TargetInfo) (network.PortScanReport, error) {
	return network.PortScanReport{}, errors.New("port scan failed")
}

// FailingPortScannerBootstrap registers a FailingPortScanner
func FailingPortScannerBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.PortScan, Name: "FailingPortScanner", Version: "v0.1", Author: "fake",
	}, FailingPortScanner{})
}

// FakeSoftware is what the fake fingerprinter identifies behind every
// http service
var FakeSoftware = network.Software{Name: "Jenkins", Version: "2.0"}

// AddFakeSoftware returns a copy of s enriched the way the fake
// fingerprinter does
func AddFakeSoftware(s network.Service) network.Service {
	out := s
	sw := FakeSoftware
	out.Software = &sw
	return out
}

// FakeServiceFingerprinter enriches http services with FakeSoftware
type FakeServiceFingerprinter struct{}

// Fingerprint implement plugin.ServiceFingerprinter
func (f FakeServiceFingerprinter) Fingerprint(ctx context.Context, target network.TargetInfo, service network.Service) (network.FingerprintReport, error) {
	return network.FingerprintReport{
		Services: []network.Service{AddFakeSoftware(service)},
	}, nil
}

// FakeServiceFingerprinterBootstrap registers a FakeServiceFingerprinter
// selecting http services
func FakeServiceFingerprinterBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.ServiceFingerprint, Name: "FakeServiceFingerprinter",
		Version: "v0.1", Author: "fake",
		Selectors: plugin.Selectors{ServiceNames: []string{"http"}},
	}, FakeServiceFingerprinter{})
}

// NoSelectorFingerprinterBootstrap registers a fingerprinter without any
// selector; the manager must skip it
func NoSelectorFingerprinterBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.ServiceFingerprint, Name: "NoSelectorFingerprinter",
		Version: "v0.1", Author: "fake",
	}, FakeServiceFingerprinter{})
}

// WebFingerprinterBootstrap registers a fingerprinter selecting all web
// services
func WebFingerprinterBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.ServiceFingerprint, Name: "FakeWebFingerprinter",
		Version: "v0.1", Author: "fake",
		Selectors: plugin.Selectors{ForWebService: true},
	}, FakeServiceFingerprinter{})
}

// FailingFingerprinter always fails
type FailingFingerprinter struct{}

// Fingerprint implement plugin.ServiceFingerprinter
func (f FailingFingerprinter) Fingerprint(ctx context.Context, target network.TargetInfo, service network.Service) (network.FingerprintReport, error) {
	return network.FingerprintReport{}, errors.New("fingerprint failed")
}

// FailingFingerprinterBootstrap registers a FailingFingerprinter
// selecting http services
func FailingFingerprinterBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.ServiceFingerprint, Name: "FailingFingerprinter",
		Version: "v0.1", Author: "fake",
		Selectors: plugin.Selectors{ServiceNames: []string{"http"}},
	}, FailingFingerprinter{})
}

// FakeDetectionReport is the report FakeVulnDetector produces for the
// first matched service
func FakeDetectionReport(name string, target network.TargetInfo, service network.Service) vuln.DetectionReport {
	return vuln.DetectionReport{
		Target:  target,
		Service: service,
		Vulnerability: vuln.Vulnerability{
			MainID:      vuln.ID{Publisher: "FAKE", Value: name},
			Severity:    vuln.SeverityCritical,
			Title:       "Fake title " + name,
			Description: "Fake description " + name,
		},
		Timestamp: FakeTime,
	}
}

// FakeVulnDetector reports one fake vulnerability on the first matched
// service
type FakeVulnDetector struct {
	Name       string
	AdvisoryID string
}

// Detect implement plugin.VulnDetector
func (d FakeVulnDetector) Detect(ctx context.Context, target network.TargetInfo, matched []network.Service) ([]vuln.DetectionReport, error) {
	if len(matched) == 0 {
		return nil, nil
	}
	return []vuln.DetectionReport{FakeDetectionReport(d.AdvisoryID, target, matched[0])}, nil
}

// Advisories implement plugin.VulnDetector
func (d FakeVulnDetector) Advisories() []vuln.Vulnerability {
	return []vuln.Vulnerability{{
		MainID:      vuln.ID{Publisher: "FAKE", Value: d.AdvisoryID},
		Severity:    vuln.SeverityCritical,
		Title:       "Fake title " + d.AdvisoryID,
		Description: "Fake description " + d.AdvisoryID,
	}}
}

// FakeVulnDetectorBootstrap registers a FakeVulnDetector without
// selectors
func FakeVulnDetectorBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.VulnDetection, Name: "FakeVulnDetector", Version: "v0.1", Author: "fake",
	}, FakeVulnDetector{Name: "FakeVulnDetector", AdvisoryID: "FakeVuln1"})
}

// FakeVulnDetector2Bootstrap registers a second FakeVulnDetector
func FakeVulnDetector2Bootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.VulnDetection, Name: "FakeVulnDetector2", Version: "v0.1", Author: "fake",
	}, FakeVulnDetector{Name: "FakeVulnDetector2", AdvisoryID: "FakeVuln2"})
}

// DetectorBootstrap registers a FakeVulnDetector under name with the
// given selectors
func DetectorBootstrap(name string, sel plugin.Selectors) plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.VulnDetection, Name: name, Version: "v0.1", Author: "fake", Selectors: sel,
	}, FakeVulnDetector{Name: name, AdvisoryID: name})
}

// FailingVulnDetector always fails
type FailingVulnDetector struct{}

// Detect implement plugin.VulnDetector
func (d FailingVulnDetector) Detect(ctx context.Context, target network.TargetInfo, matched []network.Service) ([]vuln.DetectionReport, error) {
	return nil, errors.New("vuln detection failed")
}

// Advisories implement plugin.VulnDetector
func (d FailingVulnDetector) Advisories() []vuln.Vulnerability { return nil }

// FailingVulnDetectorBootstrap registers a FailingVulnDetector without
// selectors
func FailingVulnDetectorBootstrap() plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.VulnDetection, Name: "FailingVulnDetector", Version: "v0.1", Author: "fake",
	}, &FailingVulnDetector{})
}

// FakeRemoteDetector fronts the configured sub-definitions and records
// what DetectMatched received
type FakeRemoteDetector struct {
	Subs        []plugin.Descriptor
	LastMatched []plugin.MatchedPlugin
}

// AllPlugins implement plugin.RemoteVulnDetector
func (d *FakeRemoteDetector) AllPlugins() []plugin.Descriptor { return d.Subs }

// DetectMatched implement plugin.RemoteVulnDetector. One report is
// produced per sub-definition that matched at least one service.
func (d *FakeRemoteDetector) DetectMatched(ctx context.Context, target network.TargetInfo, matched []plugin.MatchedPlugin) ([]vuln.DetectionReport, error) {
	d.LastMatched = matched
	var out []vuln.DetectionReport
	for _, mp := range matched {
		if len(mp.Services) == 0 {
			continue
		}
		out = append(out, FakeDetectionReport(mp.Plugin.Name, target, mp.Services[0]))
	}
	return out, nil
}

// Advisories implement plugin.RemoteVulnDetector
func (d *FakeRemoteDetector) Advisories() []vuln.Vulnerability { return nil }

// RemoteDetectorBootstrap registers d under name
func RemoteDetectorBootstrap(name string, d *FakeRemoteDetector) plugin.Bootstrap {
	return Bootstrap(plugin.Descriptor{
		Kind: plugin.RemoteVulnDetection, Name: name, Version: "v0.1", Author: "fake",
	}, d)
}
