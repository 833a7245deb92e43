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

import (
	"strconv"
	"strings"
)

// Transport is the transport layer protocol of a service
type Transport string

// Supported transports
const (
	TCP Transport = "tcp"
	UDP Transport = "udp"
)

// Software describes identified software behind a service
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// WebContext carries additional context for web services
type WebContext struct {
	ApplicationRoot string `json:"application_root,omitempty"`
}

// ServiceContext carries protocol specific service context. Only web
// services have one for now.
type ServiceContext struct {
	Web *WebContext `json:"web,omitempty"`
}

// Service is a single network service discovered on a target. Name is
// stored lowercased, empty when the port scanner could not identify the
// protocol.
type Service struct {
	Endpoint  Endpoint        `json:"endpoint"`
	Transport Transport       `json:"transport"`
	Name      string          `json:"name,omitempty"`
	Software  *Software       `json:"software,omitempty"`
	Context   *ServiceContext `json:"context,omitempty"`
}

// webServiceNames is the canonical set of service names denoting
// HTTP/HTTPS traffic
var webServiceNames = map[string]struct{}{
	"http":       {},
	"https":      {},
	"http-proxy": {},
	"http-alt":   {},
	"https-alt":  {},
	"ssl/http":   {},
	"ssl/https":  {},
}

// IsWebService tells whether the service name denotes HTTP/HTTPS traffic
func (s Service) IsWebService() bool {
	_, ok := webServiceNames[strings.ToLower(s.Name)]
	return ok
}

// HasApplicationRoot tells whether a web application root is already set
func (s Service) HasApplicationRoot() bool {
	return s.Context != nil && s.Context.Web != nil && s.Context.Web.ApplicationRoot != ""
}

// Key identifies the service by endpoint, transport and port for report
// merging across phases
func (s Service) Key() string {
	return s.Endpoint.Host() + "|" + s.Endpoint.Hostname + "|" +
		strconv.Itoa(int(s.Endpoint.Port)) + "/" + string(s.Transport)
}
