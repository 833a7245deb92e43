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

// Package exposedpanel is a built-in VULN_DETECTION plugin probing web
// services for unauthenticated admin panels
package exposedpanel

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/valyala/fasthttp"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

const pluginName = "ExposedWebPanelDetector"

const probeTimeout = 10 * time.Second

// panelPaths are probed relative to the service's application root
var panelPaths = []string{
	"/manage",
	"/admin",
	"/console",
	"/actuator/env",
	"/server-status",
}

var advisory = vuln.Vulnerability{
	MainID:      vuln.ID{Publisher: "DSCAN", Value: "EXPOSED_WEB_PANEL"},
	Severity:    vuln.SeverityHigh,
	Title:       "Exposed administrative web panel",
	Description: "An administrative or diagnostic endpoint is reachable without authentication.",
}

func init() {
	plugin.RegisterBootstrap(func() (plugin.Descriptor, interface{}, error) {
		return plugin.Descriptor{
			Kind:        plugin.VulnDetection,
			Name:        pluginName,
			Version:     "v1.0",
			Description: "detects unauthenticated admin and diagnostic panels on web services",
			Author:      "dscan",
			Selectors:   plugin.Selectors{ForWebService: true},
		}, New(), nil
	})
}

// Detector is a plugin.VulnDetector probing well-known panel paths
type Detector struct {
	client *fasthttp.Client
}

// New returns an initialized Detector
func New() *Detector {
	return &Detector{
		client: &fasthttp.Client{
			ReadTimeout:  probeTimeout,
			WriteTimeout: probeTimeout,
			TLSConfig:    &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// Detect implement plugin.VulnDetector
func (d *Detector) Detect(ctx context.Context, target network.TargetInfo, matched []network.Service) ([]vuln.DetectionReport, error) {
	var out []vuln.DetectionReport
	for _, svc := range matched {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !svc.IsWebService() {
			continue
		}
		path, found := d.probe(svc)
		if !found {
			continue
		}
		log.Info(log.M{Msg: "exposed panel at " + path + " on " + svc.Endpoint.HostPort(),
			Plugin: pluginName})
		v := advisory
		v.Description = v.Description + " Confirmed path: " + path
		r := vuln.DetectionReport{
			Target:        target,
			Service:       svc,
			Vulnerability: v,
			Timestamp:     time.Now().UTC(),
		}
		if u, err := uuid.NewV4(); err == nil {
			r.ID = u.String()
		}
		out = append(out, r)
	}
	return out, nil
}

// Advisories implement plugin.VulnDetector
func (d *Detector) Advisories() []vuln.Vulnerability {
	return []vuln.Vulnerability{advisory}
}

// probe returns the first panel path answering 200 with content
func (d *Detector) probe(svc network.Service) (string, bool) {
	scheme := "http"
	name := strings.ToLower(svc.Name)
	if strings.Contains(name, "https") || strings.HasPrefix(name, "ssl/") {
		scheme = "https"
	}
	root := ""
	if svc.HasApplicationRoot() {
		root = strings.TrimSuffix(svc.Context.Web.ApplicationRoot, "/")
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	for _, p := range panelPaths {
		req.Reset()
		resp.Reset()
		req.SetRequestURI(scheme + "://" + svc.Endpoint.HostPort() + root + p)
		req.Header.SetMethod(fasthttp.MethodGet)
		if err := d.client.DoTimeout(req, resp, probeTimeout); err != nil {
			continue
		}
		if resp.StatusCode() == fasthttp.StatusOK && len(resp.Body()) > 0 {
			return root + p, true
		}
	}
	return "", false
}
