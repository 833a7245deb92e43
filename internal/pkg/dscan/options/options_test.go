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

package options

import (
	"errors"
	"reflect"
	"testing"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
)

func TestValidate(t *testing.T) {
	type validateTest struct {
		n        int
		o        ScanOptions
		expected bool
	}

	var tbl = []validateTest{
		{1, ScanOptions{}, false},
		{2, ScanOptions{IPv4Target: "127.0.0.1"}, true},
		{3, ScanOptions{IPv6Target: "2001:db8::1"}, true},
		{4, ScanOptions{HostnameTarget: "localhost"}, true},
		{5, ScanOptions{URITarget: "https://localhost/function1"}, true},
		// hostname combines with an ip target
		{6, ScanOptions{IPv4Target: "127.0.0.1", HostnameTarget: "localhost"}, true},
		// URI conflicts with everything else
		{7, ScanOptions{URITarget: "https://localhost/", HostnameTarget: "localhost"}, false},
		{8, ScanOptions{URITarget: "https://localhost/", IPv4Target: "127.0.0.1"}, false},
		// only one direct IP family
		{9, ScanOptions{IPv4Target: "127.0.0.1", IPv6Target: "2001:db8::1"}, false},
		// advisory dump mode needs no target
		{10, ScanOptions{DumpAdvisories: "/tmp/advisories.txt"}, true},
		{11, ScanOptions{IPv4Target: "not-an-ip"}, false},
		{12, ScanOptions{IPv6Target: "127.0.0.1"}, false},
	}

	for _, tt := range tbl {
		err := tt.o.Validate()
		if (err == nil) != tt.expected {
			t.Errorf("case %d: Validate() = %v. Expected ok=%v.", tt.n, err, tt.expected)
		}
		if err != nil {
			var ia *InvalidArgumentError
			if !errors.As(err, &ia) {
				t.Errorf("case %d: expected InvalidArgumentError, got %T", tt.n, err)
			}
		}
	}
}

func TestIncludeExclude(t *testing.T) {
	o := ScanOptions{
		DetectorsInclude: "Blabla1, FakeVulnDetector, Blabla2",
		DetectorsExclude: "FakeVulnDetector2",
	}
	if !reflect.DeepEqual(o.Include(), []string{"Blabla1", "FakeVulnDetector", "Blabla2"}) {
		t.Error("unexpected include list:", o.Include())
	}
	if !reflect.DeepEqual(o.Exclude(), []string{"FakeVulnDetector2"}) {
		t.Error("unexpected exclude list:", o.Exclude())
	}
	var empty ScanOptions
	if empty.Include() != nil || empty.Exclude() != nil {
		t.Error("expected nil lists when unset")
	}
}

func TestBuildTarget(t *testing.T) {
	o := ScanOptions{IPv4Target: "127.0.0.1"}
	target, err := o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(target.Info.Endpoints, []network.Endpoint{network.ForIP("127.0.0.1")}) {
		t.Error("unexpected endpoints:", target.Info.Endpoints)
	}
	if target.Services != nil {
		t.Error("expected no seed services for IP target")
	}

	o = ScanOptions{IPv4Target: "127.0.0.1", HostnameTarget: "localhost"}
	target, err = o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	expected := network.ForIPAndHostname("127.0.0.1", "localhost")
	if !reflect.DeepEqual(target.Info.Endpoints, []network.Endpoint{expected}) {
		t.Error("unexpected endpoints:", target.Info.Endpoints)
	}

	o = ScanOptions{HostnameTarget: "localhost"}
	target, err = o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if target.Info.Endpoints[0].Type != network.EndpointHostname {
		t.Error("unexpected endpoint type:", target.Info.Endpoints[0].Type)
	}
}

func TestBuildURITarget(t *testing.T) {
	o := ScanOptions{URITarget: "https://localhost/function1"}
	target, err := o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if len(target.Info.Endpoints) != 1 {
		t.Fatal("expected 1 endpoint")
	}
	e := target.Info.Endpoints[0]
	if e.Type != network.EndpointIPHostnamePort {
		t.Error("unexpected endpoint type:", e.Type)
	}
	if e.Hostname != "localhost" || e.Port != 443 {
		t.Error("unexpected endpoint:", e)
	}
	if !e.HasIP() {
		t.Error("expected resolved IP")
	}

	if len(target.Services) != 1 {
		t.Fatal("expected 1 seed service")
	}
	svc := target.Services[0]
	if svc.Name != "https" || svc.Transport != network.TCP {
		t.Error("unexpected seed service:", svc)
	}
	if !svc.HasApplicationRoot() || svc.Context.Web.ApplicationRoot != "/function1" {
		t.Error("unexpected application root:", svc.Context)
	}

	// default port for http
	o = ScanOptions{URITarget: "http://localhost"}
	target, err = o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if target.Info.Endpoints[0].Port != 80 {
		t.Error("expected default port 80")
	}
	if target.Services[0].HasApplicationRoot() {
		t.Error("expected no application root for empty path")
	}

	// explicit port
	o = ScanOptions{URITarget: "http://localhost:8080/app"}
	target, err = o.BuildTarget()
	if err != nil {
		t.Fatal(err)
	}
	if target.Info.Endpoints[0].Port != 8080 {
		t.Error("expected port 8080")
	}

	// bad scheme
	o = ScanOptions{URITarget: "ftp://localhost/"}
	if _, err := o.BuildTarget(); err == nil {
		t.Error("expected error for non-http scheme")
	}
}
