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

// Package webfinger is the built-in SERVICE_FINGERPRINT plugin for web
// services, identifying the server software from response headers
package webfinger

import (
	"context"
	"crypto/tls"
	"regexp"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

const pluginName = "WebServerFingerprinter"

const probeTimeout = 10 * time.Second

func init() {
	plugin.RegisterBootstrap(func() (plugin.Descriptor, interface{}, error) {
		return plugin.Descriptor{
			Kind:        plugin.ServiceFingerprint,
			Name:        pluginName,
			Version:     "v1.0",
			Description: "identifies web server software from response headers",
			Author:      "dscan",
			Selectors:   plugin.Selectors{ForWebService: true},
		}, New(), nil
	})
}

// Fingerprinter is a plugin.ServiceFingerprinter probing web services
// over HTTP
type Fingerprinter struct {
	client *fasthttp.Client
}

// New returns an initialized Fingerprinter
func New() *Fingerprinter {
	return &Fingerprinter{
		client: &fasthttp.Client{
			ReadTimeout:  probeTimeout,
			WriteTimeout: probeTimeout,
			// scan targets routinely present self-signed certificates
			TLSConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// Fingerprint implement plugin.ServiceFingerprinter
func (f *Fingerprinter) Fingerprint(ctx context.Context, target network.TargetInfo, service network.Service) (network.FingerprintReport, error) {
	if err := ctx.Err(); err != nil {
		return network.FingerprintReport{}, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(probeURL(service))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := f.client.DoTimeout(req, resp, probeTimeout); err != nil {
		return network.FingerprintReport{}, err
	}

	out := service
	if server := string(resp.Header.Peek(fasthttp.HeaderServer)); server != "" {
		name, version := splitServerHeader(server)
		out.Software = &network.Software{Name: name, Version: version}
		log.Debug(log.M{Msg: "identified " + server + " behind " + service.Endpoint.HostPort(),
			Plugin: pluginName})
	} else if title := pageTitle(resp.Body()); title != "" {
		// no Server header, fall back to the page title as the best
		// available application identity
		out.Software = &network.Software{Name: title}
		log.Debug(log.M{Msg: "identified '" + title + "' behind " + service.Endpoint.HostPort() +
			" from its page title", Plugin: pluginName})
	}
	return network.FingerprintReport{Services: []network.Service{out}}, nil
}

// probeURL picks the scheme from the service name and appends the known
// application root, if any
func probeURL(service network.Service) string {
	scheme := "http"
	name := strings.ToLower(service.Name)
	if strings.Contains(name, "https") || strings.HasPrefix(name, "ssl/") {
		scheme = "https"
	}
	root := "/"
	if service.HasApplicationRoot() {
		root = service.Context.Web.ApplicationRoot
	}
	return scheme + "://" + service.Endpoint.HostPort() + root
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// pageTitle extracts the first html title from body, whitespace
// collapsed
func pageTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.Join(strings.Fields(string(m[1])), " ")
}

// splitServerHeader splits "nginx/1.14.0" style values into name and
// version
func splitServerHeader(server string) (name, version string) {
	server = strings.TrimSpace(server)
	if i := strings.IndexByte(server, ' '); i > -1 {
		server = server[:i]
	}
	if i := strings.IndexByte(server, '/'); i > -1 {
		return server[:i], server[i+1:]
	}
	return server, ""
}
