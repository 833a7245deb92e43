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

// Package remote implements the REMOTE_VULN_DETECTION plugin kind: one
// in-process client fronting many logical plugin definitions served by
// an external plugin server over NATS request/reply
package remote

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

const defaultRequestTimeout = 10 * time.Second

// Config locates one remote plugin server
type Config struct {
	// Addr is the NATS address, e.g. nats://dscan-nats:4222
	Addr string
	// Subject is the server's subject prefix; the client sends requests
	// to <subject>.list and <subject>.detect
	Subject string
	// Timeout per request, 0 means 10s
	Timeout time.Duration
}

type listResponse struct {
	Plugins []plugin.Descriptor `json:"plugins"`
}

type detectRequest struct {
	Target  network.TargetInfo     `json:"target"`
	Matched []plugin.MatchedPlugin `json:"matched"`
}

type detectResponse struct {
	Reports []vuln.DetectionReport `json:"reports"`
}

// Detector is a plugin.RemoteVulnDetector backed by a NATS plugin
// server. The served plugin definitions are fetched once at
// construction and immutable afterwards.
type Detector struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
	plugins []plugin.Descriptor
	desc    plugin.Descriptor
}

// NewDetector connects to the plugin server behind cfg.Subject and
// fetches the plugin definitions it serves
func NewDetector(cfg Config) (*Detector, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	nc, err := nats.Connect(cfg.Addr, nats.Timeout(timeout))
	if err != nil {
		return nil, err
	}
	d := Detector{
		nc:      nc,
		subject: cfg.Subject,
		timeout: timeout,
		desc: plugin.Descriptor{
			Kind:        plugin.RemoteVulnDetection,
			Name:        "RemoteVulnDetector-" + cfg.Subject,
			Description: "remote plugins served on " + cfg.Subject + " at " + cfg.Addr,
		},
	}

	msg, err := nc.Request(cfg.Subject+".list", nil, timeout)
	if err != nil {
		nc.Close()
		return nil, err
	}
	var resp listResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		nc.Close()
		return nil, err
	}
	d.plugins = resp.Plugins
	log.Info(log.M{Msg: "loaded " + strconv.Itoa(len(d.plugins)) +
		" remote plugin definitions from " + cfg.Subject})
	return &d, nil
}

// Bootstrap registers the detector into a registry build
func (d *Detector) Bootstrap() plugin.Bootstrap {
	return func() (plugin.Descriptor, interface{}, error) {
		return d.desc, d, nil
	}
}

// AllPlugins implement plugin.RemoteVulnDetector
func (d *Detector) AllPlugins() []plugin.Descriptor {
	return d.plugins
}

// DetectMatched implement plugin.RemoteVulnDetector. The fully matched
// plugin list is handed to the server in a single request.
func (d *Detector) DetectMatched(ctx context.Context, target network.TargetInfo, matched []plugin.MatchedPlugin) ([]vuln.DetectionReport, error) {
	b, err := json.Marshal(detectRequest{Target: target, Matched: matched})
	if err != nil {
		return nil, err
	}
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	msg, err := d.nc.RequestWithContext(reqCtx, d.subject+".detect", b)
	if err != nil {
		return nil, err
	}
	var resp detectResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return nil, err
	}
	return resp.Reports, nil
}

// Advisories implement plugin.RemoteVulnDetector. Advisories of remote
// definitions are owned by the remote end and are not replicated here.
func (d *Detector) Advisories() []vuln.Vulnerability { return nil }

// Close releases the NATS connection
func (d *Detector) Close() {
	d.nc.Close()
}
