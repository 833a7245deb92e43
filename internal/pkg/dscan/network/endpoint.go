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

// Package network holds the data model shared by all scan phases:
// endpoints, services, target info, and the reports built from them.
// Values are treated as immutable once a phase has produced them.
package network

import (
	"net"
	"strconv"
)

// AddressFamily is the IP address family of an endpoint
type AddressFamily int

// Supported address families
const (
	AddressFamilyUnspecified AddressFamily = iota
	AddressFamilyIPv4
	AddressFamilyIPv6
)

// EndpointType tags which fields of an Endpoint are meaningful
type EndpointType int

// Endpoint types
const (
	EndpointIP EndpointType = iota
	EndpointHostname
	EndpointIPHostname
	EndpointIPPort
	EndpointHostnamePort
	EndpointIPHostnamePort
)

// Endpoint is a network address plus optional hostname and port
type Endpoint struct {
	Type          EndpointType  `json:"type"`
	IPAddress     string        `json:"ip_address,omitempty"`
	AddressFamily AddressFamily `json:"address_family,omitempty"`
	Hostname      string        `json:"hostname,omitempty"`
	Port          uint16        `json:"port,omitempty"`
}

// ForIP returns an IP-only endpoint
func ForIP(ip string) Endpoint {
	return Endpoint{
		Type:          EndpointIP,
		IPAddress:     ip,
		AddressFamily: familyOf(ip),
	}
}

// ForHostname returns a hostname-only endpoint
func ForHostname(hostname string) Endpoint {
	return Endpoint{Type: EndpointHostname, Hostname: hostname}
}

// ForIPAndHostname returns an endpoint carrying both the resolved address
// and the name it was resolved from
func ForIPAndHostname(ip, hostname string) Endpoint {
	return Endpoint{
		Type:          EndpointIPHostname,
		IPAddress:     ip,
		AddressFamily: familyOf(ip),
		Hostname:      hostname,
	}
}

// ForIPPort returns an IP endpoint with a port
func ForIPPort(ip string, port uint16) Endpoint {
	return Endpoint{
		Type:          EndpointIPPort,
		IPAddress:     ip,
		AddressFamily: familyOf(ip),
		Port:          port,
	}
}

// ForHostnamePort returns a hostname endpoint with a port
func ForHostnamePort(hostname string, port uint16) Endpoint {
	return Endpoint{Type: EndpointHostnamePort, Hostname: hostname, Port: port}
}

// ForIPHostnamePort returns a fully specified endpoint
func ForIPHostnamePort(ip, hostname string, port uint16) Endpoint {
	return Endpoint{
		Type:          EndpointIPHostnamePort,
		IPAddress:     ip,
		AddressFamily: familyOf(ip),
		Hostname:      hostname,
		Port:          port,
	}
}

// WithPort returns a copy of e narrowed to carry port
func (e Endpoint) WithPort(port uint16) Endpoint {
	out := e
	out.Port = port
	switch e.Type {
	case EndpointIP:
		out.Type = EndpointIPPort
	case EndpointHostname:
		out.Type = EndpointHostnamePort
	case EndpointIPHostname:
		out.Type = EndpointIPHostnamePort
	}
	return out
}

// HasPort tells whether the endpoint carries a port
func (e Endpoint) HasPort() bool {
	switch e.Type {
	case EndpointIPPort, EndpointHostnamePort, EndpointIPHostnamePort:
		return true
	}
	return false
}

// HasIP tells whether the endpoint carries an IP address
func (e Endpoint) HasIP() bool {
	switch e.Type {
	case EndpointIP, EndpointIPHostname, EndpointIPPort, EndpointIPHostnamePort:
		return true
	}
	return false
}

// Host returns the connectable host part, preferring the IP address
func (e Endpoint) Host() string {
	if e.HasIP() {
		return e.IPAddress
	}
	return e.Hostname
}

// HostPort returns host:port for dialing
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Host(), strconv.Itoa(int(e.Port)))
}

func familyOf(ip string) AddressFamily {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return AddressFamilyUnspecified
	}
	if parsed.To4() != nil {
		return AddressFamilyIPv4
	}
	return AddressFamilyIPv6
}
