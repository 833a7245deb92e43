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

// Package workflow stitches the four scan phases together: port scan,
// service fingerprinting, web-service enrichment and vuln detection
package workflow

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	uuid "github.com/satori/go.uuid"

	"github.com/defenxor/dscan/internal/pkg/dscan/exec"
	"github.com/defenxor/dscan/internal/pkg/dscan/network"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/report"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	"github.com/defenxor/dscan/internal/pkg/shared/apm"
	"github.com/defenxor/dscan/internal/pkg/shared/cache"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"
)

// Workflow phases
const (
	PhasePortScan    = "port-scan"
	PhaseFingerprint = "fingerprint"
	PhaseWebEnrich   = "web-enrich"
	PhaseVulnDetect  = "vuln-detect"
)

const defaultDrainGrace = 30 * time.Second

// defaultApplicationRoot is set on web services that have no root yet
const defaultApplicationRoot = "/"

// WorkflowError is a phase-level failure. Only the port-scan phase
// short-circuits the scan with one.
type WorkflowError struct {
	Phase  string
	Reason string
}

func (e *WorkflowError) Error() string {
	return "scan workflow failure on " + e.Phase + " phase: " + e.Reason
}

// Config wires the workflow collaborators
type Config struct {
	Manager  *plugin.Manager
	Executor *exec.Executor
	ScanID   string
	// Deadline bounds the whole scan, 0 means none
	Deadline time.Duration
	// DrainGrace is how long to wait for in-flight plugins after the
	// deadline expired, 0 means 30s
	DrainGrace time.Duration
	// FingerprintCache optionally memoizes fingerprinter output per
	// endpoint and plugin
	FingerprintCache *cache.Cache
}

// Workflow runs scans against one target at a time
type Workflow struct {
	cfg Config
}

// New returns an initialized workflow
func New(cfg Config) *Workflow {
	return &Workflow{cfg: cfg}
}

// Run executes all phases against target and always returns a
// ScanResults record. The port-scan phase failing fails the whole scan;
// later phases degrade to partial results instead. A non-empty seed
// pins the service list (URI targets) and skips the port-scan phase.
func (w *Workflow) Run(ctx context.Context, target network.TargetInfo, seed []network.Service) report.ScanResults {
	start := time.Now()
	res := report.ScanResults{ScanID: w.cfg.ScanID, Status: report.Failed}

	scanCtx := ctx
	cancel := context.CancelFunc(func() {})
	if w.cfg.Deadline > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, w.cfg.Deadline)
	}
	defer cancel()

	portReport := network.PortScanReport{Target: target, Services: seed}
	if len(seed) == 0 {
		var err error
		portReport, err = w.portScan(scanCtx, target)
		if err != nil {
			log.Warn(log.M{Msg: err.Error(), Phase: PhasePortScan, SID: w.cfg.ScanID})
			res.StatusMessage = err.Error()
			res.Duration = time.Since(start)
			return res
		}
	}

	services := w.fingerprint(scanCtx, portReport)
	services = w.enrichWebServices(services)

	recon := network.ReconReport{Target: portReport.Target, Services: services}
	res.Recon = recon

	findings, ran, failed := w.detect(scanCtx, recon)
	res.Findings = findings

	switch {
	case ran > 0 && failed == ran:
		res.Status = report.Failed
		res.StatusMessage = "All VulnDetectors failed."
	case failed > 0:
		res.Status = report.PartiallySucceeded
		res.StatusMessage = strconv.Itoa(failed) + " of " + strconv.Itoa(ran) +
			" VulnDetectors failed."
	default:
		res.Status = report.Succeeded
	}
	// the port-scan phase completed, so a deadline expiry finalizes
	// whatever was collected as partial, even when every detector was
	// cancelled by it
	if scanCtx.Err() != nil {
		res.Status = report.PartiallySucceeded
		res.StatusMessage = "Scan deadline exceeded."
	}
	res.Duration = time.Since(start)
	log.Info(log.M{Msg: "scan finished with status " + res.Status.String(),
		SID: w.cfg.ScanID})
	return res
}

// portScan runs the first installed port scanner once. No scanner or a
// failed run fails the whole scan.
func (w *Workflow) portScan(ctx context.Context, target network.TargetInfo) (network.PortScanReport, error) {
	match, ok := w.cfg.Manager.PortScanner()
	if !ok {
		return network.PortScanReport{}, &WorkflowError{
			Phase: PhasePortScan, Reason: "no port scanner installed"}
	}
	tx := w.startPhaseTx(PhasePortScan)

	log.Info(log.M{Msg: "starting port scan", Plugin: match.Descriptor.Name,
		Phase: PhasePortScan, SID: w.cfg.ScanID})
	r, ok := w.await(ctx, w.cfg.Executor.Execute(ctx, exec.Unit{
		Descriptor: match.Descriptor,
		Run: func(runCtx context.Context) (interface{}, error) {
			return match.Scanner.Scan(runCtx, target)
		},
	}))
	if !ok || r.Status != exec.Succeeded {
		reason := "port scanner did not complete"
		if ok {
			reason = r.Err.Error()
		}
		w.endPhaseTx(tx, "failed")
		return network.PortScanReport{}, &WorkflowError{Phase: PhasePortScan, Reason: reason}
	}
	w.endPhaseTx(tx, "completed")
	return r.Data.(network.PortScanReport), nil
}

type pendingFingerprint struct {
	key    string
	ch     <-chan exec.Result
	cached *network.FingerprintReport
}

// fingerprint runs the matching fingerprinter for every discovered
// service and merges the enriched services back, keyed by
// endpoint+transport+port. Missing fingerprinters and individual
// failures leave the original service unchanged.
func (w *Workflow) fingerprint(ctx context.Context, portReport network.PortScanReport) []network.Service {
	tx := w.startPhaseTx(PhaseFingerprint)
	defer w.endPhaseTx(tx, "completed")

	var pending []pendingFingerprint
	for i := range portReport.Services {
		svc := portReport.Services[i]
		match, ok := w.cfg.Manager.ServiceFingerprinter(svc)
		if !ok {
			continue
		}
		key := match.Descriptor.Name + "|" + svc.Key()
		if fp := w.cachedFingerprint(key); fp != nil {
			pending = append(pending, pendingFingerprint{key: key, cached: fp})
			continue
		}
		target := portReport.Target
		fingerprinter := match.Fingerprinter
		pending = append(pending, pendingFingerprint{
			key: key,
			ch: w.cfg.Executor.Execute(ctx, exec.Unit{
				Descriptor: match.Descriptor,
				Run: func(runCtx context.Context) (interface{}, error) {
					return fingerprinter.Fingerprint(runCtx, target, svc)
				},
			}),
		})
	}

	enriched := make(map[string]network.Service)
	for _, p := range pending {
		var fp network.FingerprintReport
		if p.cached != nil {
			fp = *p.cached
		} else {
			r, ok := w.await(ctx, p.ch)
			if !ok || r.Status != exec.Succeeded {
				// the original service survives, the failure is already
				// logged by the executor
				continue
			}
			fp = r.Data.(network.FingerprintReport)
			w.storeFingerprint(p.key, fp)
		}
		for _, svc := range fp.Services {
			enriched[svc.Key()] = svc
		}
	}

	out := make([]network.Service, 0, len(portReport.Services))
	for _, svc := range portReport.Services {
		if e, ok := enriched[svc.Key()]; ok {
			out = append(out, e)
			continue
		}
		out = append(out, svc)
	}
	return out
}

// enrichWebServices sets the default application root on web services
// that do not have one yet. URI targets arrive with the root already
// parsed from the URI path and are left alone.
func (w *Workflow) enrichWebServices(services []network.Service) []network.Service {
	out := make([]network.Service, 0, len(services))
	for _, svc := range services {
		if svc.IsWebService() && !svc.HasApplicationRoot() {
			log.Debug(log.M{Msg: "setting default application root on " +
				svc.Endpoint.HostPort(), Phase: PhaseWebEnrich, SID: w.cfg.ScanID})
			ctxCopy := network.ServiceContext{}
			if svc.Context != nil {
				ctxCopy = *svc.Context
			}
			ctxCopy.Web = &network.WebContext{ApplicationRoot: defaultApplicationRoot}
			svc.Context = &ctxCopy
		}
		out = append(out, svc)
	}
	return out
}

// detect fans the applicable detectors out on the executor and flattens
// their detection reports into findings, in (registry order, report
// order)
func (w *Workflow) detect(ctx context.Context, recon network.ReconReport) (findings []report.Finding, ran, failed int) {
	tx := w.startPhaseTx(PhaseVulnDetect)
	defer w.endPhaseTx(tx, "completed")

	matches := w.cfg.Manager.VulnDetectors(recon)
	ran = len(matches)
	log.Info(log.M{Msg: "running " + strconv.Itoa(ran) + " vuln detectors",
		Phase: PhaseVulnDetect, SID: w.cfg.ScanID})

	handles := make([]<-chan exec.Result, ran)
	for i := range matches {
		m := matches[i]
		handles[i] = w.cfg.Executor.Execute(ctx, exec.Unit{
			Descriptor: m.Descriptor,
			Run: func(runCtx context.Context) (interface{}, error) {
				if m.Remote != nil {
					return m.Remote.DetectMatched(runCtx, recon.Target, m.MatchedPlugins)
				}
				return m.Detector.Detect(runCtx, recon.Target, m.MatchedServices)
			},
		})
	}

	for i := range handles {
		r, ok := w.await(ctx, handles[i])
		if !ok || r.Status != exec.Succeeded {
			failed++
			continue
		}
		for _, d := range r.Data.([]vuln.DetectionReport) {
			if d.ID == "" {
				if u, err := uuid.NewV4(); err == nil {
					d.ID = u.String()
				}
			}
			findings = append(findings, report.FromDetection(d))
		}
	}
	log.Debug(log.M{Msg: "detector fan-out complete, executor rate " +
		strconv.FormatInt(w.cfg.Executor.Rate(), 10) + "/s",
		Phase: PhaseVulnDetect, SID: w.cfg.ScanID})
	return
}

// await receives one result, switching to the drain grace period once
// the scan deadline has expired
func (w *Workflow) await(ctx context.Context, ch <-chan exec.Result) (exec.Result, bool) {
	select {
	case r := <-ch:
		return r, true
	case <-ctx.Done():
	}
	grace := w.cfg.DrainGrace
	if grace == 0 {
		grace = defaultDrainGrace
	}
	select {
	case r := <-ch:
		return r, true
	case <-time.After(grace):
		return exec.Result{}, false
	}
}

func (w *Workflow) cachedFingerprint(key string) *network.FingerprintReport {
	if w.cfg.FingerprintCache == nil {
		return nil
	}
	b, err := w.cfg.FingerprintCache.Get(key)
	if err != nil {
		return nil
	}
	var fp network.FingerprintReport
	if err := json.Unmarshal(b, &fp); err != nil {
		return nil
	}
	log.Debug(log.M{Msg: "returning cached fingerprint for " + key,
		Phase: PhaseFingerprint, SID: w.cfg.ScanID})
	return &fp
}

func (w *Workflow) storeFingerprint(key string, fp network.FingerprintReport) {
	if w.cfg.FingerprintCache == nil {
		return
	}
	if b, err := json.Marshal(fp); err == nil {
		w.cfg.FingerprintCache.Set(key, b)
	}
}

func (w *Workflow) startPhaseTx(phase string) *apm.Transaction {
	if !apm.Enabled() {
		return nil
	}
	tx := apm.StartTransaction("Scan "+phase, "Scanner")
	tx.SetCustom("scan_id", w.cfg.ScanID)
	return tx
}

func (w *Workflow) endPhaseTx(tx *apm.Transaction, result string) {
	if tx == nil {
		return
	}
	tx.Result(result)
	tx.End()
}
