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

package exposedpanel

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

func serviceFor(t *testing.T, ts *httptest.Server) network.Service {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ts.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return network.Service{
		Endpoint:  network.ForIPPort(host, uint16(port)),
		Transport: network.TCP,
		Name:      "http",
	}
}

func TestDetectExposedPanel(t *testing.T) {
	log.Setup(false)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin" {
			w.Write([]byte("<html>admin console</html>"))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	svc := serviceFor(t, ts)
	target := network.TargetInfo{Endpoints: []network.Endpoint{svc.Endpoint}}

	reports, err := New().Detect(context.Background(), target, []network.Service{svc})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatal("expected 1 report, got", len(reports))
	}
	r := reports[0]
	if r.Vulnerability.MainID.Value != "EXPOSED_WEB_PANEL" {
		t.Error("unexpected vulnerability:", r.Vulnerability.MainID)
	}
	if r.ID == "" {
		t.Error("expected a report ID")
	}
	if r.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestDetectNothingExposed(t *testing.T) {
	log.Setup(false)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	svc := serviceFor(t, ts)
	reports, err := New().Detect(context.Background(), network.TargetInfo{}, []network.Service{svc})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Error("expected no reports, got", len(reports))
	}
}

func TestDetectSkipsNonWebServices(t *testing.T) {
	log.Setup(false)
	svc := network.Service{
		Endpoint: network.ForIPPort("127.0.0.1", 22), Transport: network.TCP, Name: "ssh",
	}
	reports, err := New().Detect(context.Background(), network.TargetInfo{}, []network.Service{svc})
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 0 {
		t.Error("expected no reports for non-web service")
	}
}

func TestAdvisories(t *testing.T) {
	advisories := New().Advisories()
	if len(advisories) != 1 {
		t.Fatal("expected 1 advisory")
	}
	if advisories[0].MainID.Value != "EXPOSED_WEB_PANEL" {
		t.Error("unexpected advisory:", advisories[0])
	}
}
