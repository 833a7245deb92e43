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

// Package nmapscan is the built-in PORT_SCAN plugin shelling out to
// nmap for port and service discovery
package nmapscan

import (
	"context"
	"errors"
	"strconv"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

const pluginName = "NmapPortScanner"

// Config tunes the nmap invocation
type Config struct {
	// Ports is an nmap port spec like "1-1000" or "80,443,8080"; empty
	// means nmap's default port set
	Ports string
	// SkipHostDiscovery passes -Pn
	SkipHostDiscovery bool
	// OsDetection passes -O, requires privileges
	OsDetection bool
}

var cfg = Config{SkipHostDiscovery: true}

// Configure overrides the config the bootstrap snapshots at registry
// build time
func Configure(c Config) { cfg = c }

func init() {
	plugin.RegisterBootstrap(func() (plugin.Descriptor, interface{}, error) {
		return plugin.Descriptor{
			Kind:        plugin.PortScan,
			Name:        pluginName,
			Version:     "v1.0",
			Description: "port and service discovery using nmap",
			Author:      "dscan",
		}, New(cfg), nil
	})
}

// Scanner is a plugin.PortScanner backed by the nmap binary
type Scanner struct {
	cfg Config
}

// New returns an initialized Scanner
func New(c Config) *Scanner {
	return &Scanner{cfg: c}
}

// Scan implement plugin.PortScanner
func (s *Scanner) Scan(ctx context.Context, target network.TargetInfo) (network.PortScanReport, error) {
	if len(target.Endpoints) == 0 {
		return network.PortScanReport{}, errors.New("target has no endpoint")
	}
	endpoint := target.Endpoints[0]

	opts := []nmap.Option{
		nmap.WithTargets(endpoint.Host()),
		nmap.WithServiceInfo(),
	}
	if endpoint.HasPort() {
		opts = append(opts, nmap.WithPorts(strconv.Itoa(int(endpoint.Port))))
	} else if s.cfg.Ports != "" {
		opts = append(opts, nmap.WithPorts(s.cfg.Ports))
	}
	if s.cfg.SkipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}
	if s.cfg.OsDetection {
		opts = append(opts, nmap.WithOSDetection())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return network.PortScanReport{}, err
	}
	result, warnings, err := scanner.Run()
	if err != nil {
		return network.PortScanReport{}, err
	}
	if warnings != nil && len(*warnings) > 0 {
		for _, w := range *warnings {
			log.Warn(log.M{Msg: "nmap: " + w, Plugin: pluginName})
		}
	}

	report := network.PortScanReport{Target: target}
	for _, h := range result.Hosts {
		report.Target.OperatingSystems = append(report.Target.OperatingSystems, osClasses(h)...)
		for _, p := range h.Ports {
			if !strings.HasPrefix(strings.ToLower(p.State.State), "open") {
				continue
			}
			svc := network.Service{
				Endpoint:  endpoint.WithPort(uint16(p.ID)),
				Transport: network.Transport(strings.ToLower(p.Protocol)),
				Name:      CanonicalServiceName(p.Service.Name, p.Service.Tunnel),
			}
			if p.Service.Product != "" {
				svc.Software = &network.Software{
					Name:    p.Service.Product,
					Version: p.Service.Version,
				}
			}
			report.Services = append(report.Services, svc)
		}
	}
	log.Info(log.M{Msg: "nmap found " + strconv.Itoa(len(report.Services)) +
		" open services on " + endpoint.Host(), Plugin: pluginName})
	return report, nil
}

// CanonicalServiceName lowercases the nmap service name and folds the
// ssl tunnel marker in, so https surfaces as ssl/http the way the web
// service set expects
func CanonicalServiceName(name, tunnel string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	if strings.ToLower(tunnel) == "ssl" && !strings.HasPrefix(name, "ssl/") {
		return "ssl/" + name
	}
	return name
}

func osClasses(h nmap.Host) (out []network.OsClass) {
	for _, m := range h.OS.Matches {
		for _, c := range m.Classes {
			out = append(out, network.OsClass{
				Type:     c.Type,
				Vendor:   c.Vendor,
				OsFamily: c.Family,
				Accuracy: c.Accuracy,
			})
		}
	}
	return
}
