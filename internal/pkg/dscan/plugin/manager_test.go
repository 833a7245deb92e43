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

package plugin_test

import (
	"reflect"
	"testing"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin/plugintest"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

func newManager(t *testing.T, include, exclude []string, boots ...plugin.Bootstrap) *plugin.Manager {
	t.Helper()
	if err := log.Setup(false); err != nil {
		t.Fatal(err)
	}
	reg, err := plugin.NewRegistry(boots)
	if err != nil {
		t.Fatal(err)
	}
	return plugin.NewManager(reg, include, exclude)
}

func wordpressService() network.Service {
	s := network.Service{
		Endpoint:  network.ForIPPort("1.1.1.1", 80),
		Transport: network.TCP,
		Name:      "http",
	}
	s.Software = &network.Software{Name: "WordPress"}
	return s
}

func jenkinsService() network.Service {
	s := network.Service{
		Endpoint:  network.ForIPPort("1.1.1.1", 443),
		Transport: network.TCP,
		Name:      "https",
	}
	s.Software = &network.Software{Name: "Jenkins"}
	return s
}

func untaggedService() network.Service {
	return network.Service{
		Endpoint:  network.ForIPPort("1.1.1.1", 12345),
		Transport: network.TCP,
	}
}

func fakeRecon() network.ReconReport {
	return network.ReconReport{
		Services: []network.Service{wordpressService(), jenkinsService(), untaggedService()},
	}
}

func fakeReconWithOs() network.ReconReport {
	r := fakeRecon()
	r.Target.OperatingSystems = []network.OsClass{
		{Type: "general purpose", Vendor: "Vendor", OsFamily: "FakeOS", Accuracy: 96},
	}
	return r
}

func TestPortScanners(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.FakePortScannerBootstrap(),
		plugintest.FakePortScanner2Bootstrap(),
		plugintest.FakeVulnDetectorBootstrap(),
	)

	scanners := m.PortScanners()
	if len(scanners) != 2 {
		t.Fatal("expected 2 port scanners, got", len(scanners))
	}
	first, ok := m.PortScanner()
	if !ok {
		t.Fatal("expected a first port scanner")
	}
	if first.Descriptor.Name != scanners[0].Descriptor.Name {
		t.Error("PortScanner() should agree with PortScanners()[0]")
	}
	if first.Descriptor.Name != "FakePortScanner" {
		t.Error("unexpected first port scanner:", first.Descriptor.Name)
	}

	empty := newManager(t, nil, nil, plugintest.FakeVulnDetectorBootstrap())
	if len(empty.PortScanners()) != 0 {
		t.Error("expected no port scanners")
	}
	if _, ok := empty.PortScanner(); ok {
		t.Error("expected no first port scanner")
	}
}

func TestServiceFingerprinter(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.NoSelectorFingerprinterBootstrap(),
		plugintest.FakeServiceFingerprinterBootstrap(),
	)

	httpService := network.Service{
		Endpoint: network.ForIPPort("1.1.1.1", 80), Transport: network.TCP, Name: "http",
	}
	match, ok := m.ServiceFingerprinter(httpService)
	if !ok {
		t.Fatal("expected a fingerprinter for http")
	}
	// the selector-less fingerprinter registered first must be skipped
	if match.Descriptor.Name != "FakeServiceFingerprinter" {
		t.Error("unexpected fingerprinter:", match.Descriptor.Name)
	}
	if !reflect.DeepEqual(match.MatchedServices, []network.Service{httpService}) {
		t.Error("unexpected matched services:", match.MatchedServices)
	}

	httpsService := httpService
	httpsService.Name = "https"
	if _, ok := m.ServiceFingerprinter(httpsService); ok {
		t.Error("expected no fingerprinter for https")
	}

	onlyNoSelector := newManager(t, nil, nil, plugintest.NoSelectorFingerprinterBootstrap())
	if _, ok := onlyNoSelector.ServiceFingerprinter(httpService); ok {
		t.Error("expected selector-less fingerprinter to be skipped")
	}
}

func TestServiceFingerprinterForWebService(t *testing.T) {
	m := newManager(t, nil, nil, plugintest.WebFingerprinterBootstrap())

	for _, name := range []string{"https", "http-proxy"} {
		s := network.Service{Endpoint: network.ForIPPort("1.1.1.1", 80), Transport: network.TCP, Name: name}
		if _, ok := m.ServiceFingerprinter(s); !ok {
			t.Error("expected web fingerprinter match for", name)
		}
	}
	for _, name := range []string{"ssh", "rdp"} {
		s := network.Service{Endpoint: network.ForIPPort("1.1.1.1", 80), Transport: network.TCP, Name: name}
		if _, ok := m.ServiceFingerprinter(s); ok {
			t.Error("expected no web fingerprinter match for", name)
		}
	}
}

func TestVulnDetectorsNoFiltering(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.FakeVulnDetectorBootstrap(),
		plugintest.FakeVulnDetector2Bootstrap(),
	)
	recon := fakeRecon()

	detectors := m.VulnDetectors(recon)
	if len(detectors) != 2 {
		t.Fatal("expected 2 detectors, got", len(detectors))
	}
	if detectors[0].Descriptor.Name != "FakeVulnDetector" ||
		detectors[1].Descriptor.Name != "FakeVulnDetector2" {
		t.Error("detectors not in registration order")
	}
	for _, d := range detectors {
		// selector-less detector receives every service in the report
		if !reflect.DeepEqual(d.MatchedServices, recon.Services) {
			t.Error("expected all services matched for", d.Descriptor.Name)
		}
	}
}

func TestVulnDetectorsServiceNameFilter(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.DetectorBootstrap("HttpDetector",
			plugin.Selectors{ServiceNames: []string{"http"}}),
	)

	detectors := m.VulnDetectors(fakeRecon())
	if len(detectors) != 1 {
		t.Fatal("expected 1 detector, got", len(detectors))
	}
	expected := []network.Service{wordpressService(), untaggedService()}
	if !reflect.DeepEqual(detectors[0].MatchedServices, expected) {
		t.Error("unexpected matched services:", detectors[0].MatchedServices)
	}

	// no matching service at all excludes the detector
	onlyHTTPS := network.ReconReport{Services: []network.Service{jenkinsService()}}
	if len(m.VulnDetectors(onlyHTTPS)) != 0 {
		t.Error("expected no detector for https-only report")
	}
}

func TestVulnDetectorsSoftwareFilter(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.DetectorBootstrap("JenkinsDetector",
			plugin.Selectors{Software: "Jenkins"}),
	)

	detectors := m.VulnDetectors(fakeRecon())
	if len(detectors) != 1 {
		t.Fatal("expected 1 detector, got", len(detectors))
	}
	expected := []network.Service{jenkinsService(), untaggedService()}
	if !reflect.DeepEqual(detectors[0].MatchedServices, expected) {
		t.Error("unexpected matched services:", detectors[0].MatchedServices)
	}
}

func TestVulnDetectorsOsFilter(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.DetectorBootstrap("OsDetector",
			plugin.Selectors{OsClass: &plugin.OsClassSelector{OsFamilies: []string{"FakeOS"}}}),
	)

	// no OS guess on target: detector excluded regardless of services
	if len(m.VulnDetectors(fakeRecon())) != 0 {
		t.Error("expected no detector without matching OS")
	}

	detectors := m.VulnDetectors(fakeReconWithOs())
	if len(detectors) != 1 {
		t.Fatal("expected 1 detector, got", len(detectors))
	}
	// OS-only selector matches every service on the target
	if !reflect.DeepEqual(detectors[0].MatchedServices, fakeRecon().Services) {
		t.Error("unexpected matched services:", detectors[0].MatchedServices)
	}
}

func TestVulnDetectorsRemote(t *testing.T) {
	remote := &plugintest.FakeRemoteDetector{
		Subs: []plugin.Descriptor{
			{Kind: plugin.VulnDetection, Name: "FakeHttpServiceVuln",
				Selectors: plugin.Selectors{ServiceNames: []string{"http"}}},
			{Kind: plugin.VulnDetection, Name: "FakeJenkinsVuln",
				Selectors: plugin.Selectors{Software: "Jenkins"}},
			{Kind: plugin.VulnDetection, Name: "FakeOsVuln",
				Selectors: plugin.Selectors{OsClass: &plugin.OsClassSelector{
					OsFamilies: []string{"ThisWontMatch", "FakeOS"}}}},
			{Kind: plugin.VulnDetection, Name: "FakeOsHttpVuln",
				Selectors: plugin.Selectors{
					ServiceNames: []string{"http"},
					OsClass: &plugin.OsClassSelector{
						OsFamilies: []string{"FakeOS"}, MinAccuracy: 90}}},
		},
	}
	m := newManager(t, nil, nil, plugintest.RemoteDetectorBootstrap("FakeRemoteDetector", remote))

	detectors := m.VulnDetectors(fakeReconWithOs())
	if len(detectors) != 1 {
		t.Fatal("expected 1 remote detector, got", len(detectors))
	}
	if detectors[0].Remote == nil {
		t.Fatal("expected a remote detector match")
	}
	mp := detectors[0].MatchedPlugins
	if len(mp) != 4 {
		t.Fatal("expected 4 matched sub-definitions, got", len(mp))
	}

	expectServices := func(n int, expected []network.Service) {
		if !reflect.DeepEqual(mp[n].Services, expected) {
			t.Errorf("sub-definition %s: unexpected services %v", mp[n].Plugin.Name, mp[n].Services)
		}
	}
	expectServices(0, []network.Service{wordpressService(), untaggedService()})
	expectServices(1, []network.Service{jenkinsService(), untaggedService()})
	expectServices(2, []network.Service{wordpressService(), jenkinsService(), untaggedService()})
	expectServices(3, []network.Service{wordpressService(), untaggedService()})

	// without a matching OS guess the OS-bound sub-definitions go empty,
	// but the remote detector itself is still included
	detectors = m.VulnDetectors(fakeRecon())
	if len(detectors) != 1 {
		t.Fatal("expected 1 remote detector, got", len(detectors))
	}
	mp = detectors[0].MatchedPlugins
	if len(mp) != 4 {
		t.Fatal("expected 4 matched sub-definitions, got", len(mp))
	}
	if len(mp[2].Services) != 0 || len(mp[3].Services) != 0 {
		t.Error("expected empty service lists for OS-bound sub-definitions")
	}
}

func TestVulnDetectorsIncludeExclude(t *testing.T) {
	boots := []plugin.Bootstrap{
		plugintest.FakeVulnDetectorBootstrap(),
		plugintest.FakeVulnDetector2Bootstrap(),
	}
	recon := fakeRecon()

	m := newManager(t, []string{"FakeVulnDetector"}, nil, boots...)
	detectors := m.VulnDetectors(recon)
	if len(detectors) != 1 || detectors[0].Descriptor.Name != "FakeVulnDetector" {
		t.Error("include filter failed:", detectors)
	}

	m = newManager(t, nil, []string{"FakeVulnDetector"}, boots...)
	detectors = m.VulnDetectors(recon)
	if len(detectors) != 1 || detectors[0].Descriptor.Name != "FakeVulnDetector2" {
		t.Error("exclude filter failed:", detectors)
	}

	// include and exclude are set-intersected
	m = newManager(t, []string{"FakeVulnDetector", "FakeVulnDetector2"},
		[]string{"FakeVulnDetector2"}, boots...)
	detectors = m.VulnDetectors(recon)
	if len(detectors) != 1 || detectors[0].Descriptor.Name != "FakeVulnDetector" {
		t.Error("include/exclude intersection failed:", detectors)
	}

	// unknown include name silently filters to empty
	m = newManager(t, []string{"NoSuchDetector"}, nil, boots...)
	if len(m.VulnDetectors(recon)) != 0 {
		t.Error("expected empty result for unknown include name")
	}
}

func TestAdvisories(t *testing.T) {
	m := newManager(t, nil, nil,
		plugintest.FakeVulnDetectorBootstrap(),
		plugintest.FakeVulnDetector2Bootstrap(),
	)
	advisories := m.Advisories()
	if len(advisories) != 2 {
		t.Fatal("expected 2 advisories, got", len(advisories))
	}
	if advisories[0].MainID.Value != "FakeVuln1" || advisories[1].MainID.Value != "FakeVuln2" {
		t.Error("advisories not in registration order:", advisories)
	}
}
