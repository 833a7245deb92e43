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

// Package options validates scan target flags and derives the initial
// target description from them
package options

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/shared/str"
)

// InvalidArgumentError is a CLI validation failure; the process exits
// with code 64 on one
type InvalidArgumentError struct {
	Flag   string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument --" + e.Flag + ": " + e.Reason
}

// ScanOptions carries the raw scan flags
type ScanOptions struct {
	IPv4Target       string
	IPv6Target       string
	HostnameTarget   string
	URITarget        string
	DetectorsInclude string
	DetectorsExclude string
	DumpAdvisories   string
}

// Target is the validated scan input: the target info plus, for URI
// targets, the pre-derived service carrying the application root
type Target struct {
	Info     network.TargetInfo
	Services []network.Service
}

// AdvisoryDumpMode tells whether no scan should be performed
func (o ScanOptions) AdvisoryDumpMode() bool {
	return o.DumpAdvisories != ""
}

// Validate enforces the target selector rules: at least one selector
// unless dumping advisories, URI targets conflict with everything else,
// and only one IP family can be given directly
func (o ScanOptions) Validate() error {
	hasIP := o.IPv4Target != "" || o.IPv6Target != ""
	hasAny := hasIP || o.HostnameTarget != "" || o.URITarget != ""

	if !hasAny {
		if o.AdvisoryDumpMode() {
			return nil
		}
		return &InvalidArgumentError{Flag: "ip-v4-target",
			Reason: "at least one target selector is required"}
	}
	if o.IPv4Target != "" && o.IPv6Target != "" {
		return &InvalidArgumentError{Flag: "ip-v6-target",
			Reason: "conflicts with --ip-v4-target"}
	}
	if o.URITarget != "" && (hasIP || o.HostnameTarget != "") {
		return &InvalidArgumentError{Flag: "uri-target",
			Reason: "conflicts with --ip-v4-target, --ip-v6-target and --hostname-target"}
	}
	if o.IPv4Target != "" {
		if ip := net.ParseIP(o.IPv4Target); ip == nil || ip.To4() == nil {
			return &InvalidArgumentError{Flag: "ip-v4-target",
				Reason: o.IPv4Target + " is not a valid IPv4 address"}
		}
	}
	if o.IPv6Target != "" {
		if ip := net.ParseIP(o.IPv6Target); ip == nil || ip.To4() != nil {
			return &InvalidArgumentError{Flag: "ip-v6-target",
				Reason: o.IPv6Target + " is not a valid IPv6 address"}
		}
	}
	return nil
}

// Include returns the parsed detectors-include list, nil when unset
func (o ScanOptions) Include() []string {
	if strings.TrimSpace(o.DetectorsInclude) == "" {
		return nil
	}
	return str.CsvToSlice(o.DetectorsInclude)
}

// Exclude returns the parsed detectors-exclude list, nil when unset
func (o ScanOptions) Exclude() []string {
	if strings.TrimSpace(o.DetectorsExclude) == "" {
		return nil
	}
	return str.CsvToSlice(o.DetectorsExclude)
}

// BuildTarget derives the target info from the validated options. URI
// targets resolve the hostname and carry an initial service with the
// application root parsed from the URI path.
func (o ScanOptions) BuildTarget() (Target, error) {
	if o.URITarget != "" {
		return buildURITarget(o.URITarget)
	}

	ip := o.IPv4Target
	if ip == "" {
		ip = o.IPv6Target
	}

	var e network.Endpoint
	switch {
	case ip != "" && o.HostnameTarget != "":
		e = network.ForIPAndHostname(ip, o.HostnameTarget)
	case ip != "":
		e = network.ForIP(ip)
	default:
		e = network.ForHostname(o.HostnameTarget)
	}
	return Target{Info: network.TargetInfo{Endpoints: []network.Endpoint{e}}}, nil
}

func buildURITarget(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, &InvalidArgumentError{Flag: "uri-target", Reason: err.Error()}
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Target{}, &InvalidArgumentError{Flag: "uri-target",
			Reason: "scheme must be http or https"}
	}

	port := uint16(80)
	if scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > 65535 {
			return Target{}, &InvalidArgumentError{Flag: "uri-target",
				Reason: p + " is not a valid port"}
		}
		port = uint16(n)
	}

	host := u.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return Target{}, &InvalidArgumentError{Flag: "uri-target",
			Reason: "cannot resolve " + host}
	}

	e := network.ForIPHostnamePort(ips[0].String(), host, port)
	svc := network.Service{
		Endpoint:  e,
		Transport: network.TCP,
		Name:      scheme,
	}
	if u.Path != "" {
		svc.Context = &network.ServiceContext{
			Web: &network.WebContext{ApplicationRoot: u.Path},
		}
	}
	return Target{
		Info:     network.TargetInfo{Endpoints: []network.Endpoint{e}},
		Services: []network.Service{svc},
	}, nil
}
