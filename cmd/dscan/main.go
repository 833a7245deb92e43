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

package main

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/defenxor/dscan/internal/pkg/dscan/exec"
	"github.com/defenxor/dscan/internal/pkg/dscan/options"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugin"
	"github.com/defenxor/dscan/internal/pkg/dscan/plugins/nmapscan"
	"github.com/defenxor/dscan/internal/pkg/dscan/remote"
	"github.com/defenxor/dscan/internal/pkg/dscan/report"
	"github.com/defenxor/dscan/internal/pkg/dscan/scope"
	"github.com/defenxor/dscan/internal/pkg/dscan/vuln"
	"github.com/defenxor/dscan/internal/pkg/dscan/workflow"
	"github.com/defenxor/dscan/internal/pkg/shared/apm"
	"github.com/defenxor/dscan/internal/pkg/shared/cache"
	"github.com/defenxor/dscan/internal/pkg/shared/fs"
	"github.com/defenxor/dscan/internal/pkg/shared/idgen"
	log "github.com/defenxor/dscan/internal/pkg/shared/logger"

	// built-in plugins register their bootstraps on import
	_ "github.com/defenxor/dscan/internal/pkg/dscan/plugins/exposedpanel"
	_ "github.com/defenxor/dscan/internal/pkg/dscan/plugins/webfinger"
)

const (
	progName    = "dscan"
	resultsFile = "scan_results.json"
)

var version string
var buildTime string

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.PersistentFlags().Bool("dev", false, "Enable development environment specific setting")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug messages for tracing and troubleshooting")
	scanCmd.Flags().String("ip-v4-target", "", "IPv4 address to scan")
	scanCmd.Flags().String("ip-v6-target", "", "IPv6 address to scan")
	scanCmd.Flags().String("hostname-target", "", "Hostname to scan, can be combined with an IP target")
	scanCmd.Flags().String("uri-target", "", "URI to scan, conflicts with the other target selectors")
	scanCmd.Flags().String("detectors-include", "", "Comma separated detector names to run exclusively")
	scanCmd.Flags().String("detectors-exclude", "", "Comma separated detector names to skip")
	scanCmd.Flags().String("dump-advisories", "", "Write all detector advisories to this file and exit without scanning")
	scanCmd.Flags().IntP("maxWorkers", "w", 0, "Max. concurrent plugin executions, 0 means min(32, cores*4)")
	scanCmd.Flags().DurationP("pluginTimeout", "t", time.Hour, "Per-plugin execution timeout")
	scanCmd.Flags().DurationP("scanDeadline", "l", 0, "Overall scan deadline, 0 means none")
	scanCmd.Flags().Duration("drainGrace", 30*time.Second, "How long to wait for in-flight plugins after the deadline expired")
	scanCmd.Flags().IntP("maxSubmissionsPerSecond", "r", 0, "Max. plugin submissions per second, 0 means unthrottled")
	scanCmd.Flags().IntP("cacheDuration", "c", 10, "Cache expiration time in minutes for fingerprint results")
	scanCmd.Flags().StringSlice("remote-servers", []string{}, "NATS subjects of remote plugin servers to load")
	scanCmd.Flags().String("msq", "nats://dscan-nats:4222", "NATS address for remote plugin servers")
	scanCmd.Flags().StringP("out", "o", "", "Scan results output file, defaults to logs/"+resultsFile+" under the program directory")
	scanCmd.Flags().Bool("apm", false, "Enable elastic APM instrumentation")
	scanCmd.Flags().String("nmapPorts", "", "Nmap port spec for the built-in port scanner, e.g. 1-1000")
	scanCmd.Flags().Bool("nmapOsDetection", false, "Enable nmap OS detection, requires privileges")
	viper.BindPFlag("dev", rootCmd.PersistentFlags().Lookup("dev"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("ipV4Target", scanCmd.Flags().Lookup("ip-v4-target"))
	viper.BindPFlag("ipV6Target", scanCmd.Flags().Lookup("ip-v6-target"))
	viper.BindPFlag("hostnameTarget", scanCmd.Flags().Lookup("hostname-target"))
	viper.BindPFlag("uriTarget", scanCmd.Flags().Lookup("uri-target"))
	viper.BindPFlag("detectorsInclude", scanCmd.Flags().Lookup("detectors-include"))
	viper.BindPFlag("detectorsExclude", scanCmd.Flags().Lookup("detectors-exclude"))
	viper.BindPFlag("dumpAdvisories", scanCmd.Flags().Lookup("dump-advisories"))
	viper.BindPFlag("maxWorkers", scanCmd.Flags().Lookup("maxWorkers"))
	viper.BindPFlag("pluginTimeout", scanCmd.Flags().Lookup("pluginTimeout"))
	viper.BindPFlag("scanDeadline", scanCmd.Flags().Lookup("scanDeadline"))
	viper.BindPFlag("drainGrace", scanCmd.Flags().Lookup("drainGrace"))
	viper.BindPFlag("maxSubmissionsPerSecond", scanCmd.Flags().Lookup("maxSubmissionsPerSecond"))
	viper.BindPFlag("cacheDuration", scanCmd.Flags().Lookup("cacheDuration"))
	viper.BindPFlag("remoteServers", scanCmd.Flags().Lookup("remote-servers"))
	viper.BindPFlag("msq", scanCmd.Flags().Lookup("msq"))
	viper.BindPFlag("out", scanCmd.Flags().Lookup("out"))
	viper.BindPFlag("apm", scanCmd.Flags().Lookup("apm"))
	viper.BindPFlag("nmapPorts", scanCmd.Flags().Lookup("nmapPorts"))
	viper.BindPFlag("nmapOsDetection", scanCmd.Flags().Lookup("nmapOsDetection"))
}

func initConfig() {
	viper.SetEnvPrefix(progName)
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exit("Error returned from command", err)
	}
}

func exit(msg string, err error) {
	fmt.Println(msg+":", err)
	os.Exit(1)
}

func exitInvalidArgument(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(64)
}

var rootCmd = &cobra.Command{
	Use:   "dscan",
	Short: "Network vulnerability scanner",
	Long: `
Dscan is a plugin-driven network vulnerability scanner.

Given a target, dscan coordinates port scanning, service fingerprinting
and vulnerability detection by matching installed plugins against the
discovered services and running them on a bounded worker pool.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Long:  `Print the version and build information`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version, buildTime)
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the installed plugins",
	Long:  `Build the plugin registry and list every installed plugin in registration order`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Setup(viper.GetBool("debug"))
		reg, err := plugin.NewRegistry(plugin.DefaultBootstraps())
		if err != nil {
			exit("Cannot build plugin registry", err)
		}
		for _, e := range reg.All() {
			fmt.Printf("%-22s %-28s %-6s %s\n",
				e.Descriptor.Kind, e.Descriptor.Name, e.Descriptor.Version, e.Descriptor.Description)
		}
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a target",
	Long: `
Scan a single target given by IP, hostname or URI.

The scan runs in four phases: port scan, service fingerprinting,
web-service enrichment and vulnerability detection. Every phase fans
its plugins out on a shared bounded worker pool. The process exit code
is 0 when the scan succeeded, 2 when it partially succeeded, 1 when it
failed, and 64 on invalid arguments.`,

	Run: func(cmd *cobra.Command, args []string) {
		log.Setup(viper.GetBool("debug"))

		opts := options.ScanOptions{
			IPv4Target:       viper.GetString("ipV4Target"),
			IPv6Target:       viper.GetString("ipV6Target"),
			HostnameTarget:   viper.GetString("hostnameTarget"),
			URITarget:        viper.GetString("uriTarget"),
			DetectorsInclude: viper.GetString("detectorsInclude"),
			DetectorsExclude: viper.GetString("detectorsExclude"),
			DumpAdvisories:   viper.GetString("dumpAdvisories"),
		}
		if err := opts.Validate(); err != nil {
			exitInvalidArgument(err)
		}

		d, err := fs.GetDir(viper.GetBool("dev"))
		if err != nil {
			exit("Cannot get current directory??", err)
		}
		confDir := path.Join(d, "configs")
		logDir := path.Join(d, "logs")

		apm.Enable(viper.GetBool("apm"))

		if err := scope.Init(confDir); err != nil {
			exit("Cannot initialize scan scope from "+confDir, err)
		}

		nmapscan.Configure(nmapscan.Config{
			Ports:             viper.GetString("nmapPorts"),
			SkipHostDiscovery: true,
			OsDetection:       viper.GetBool("nmapOsDetection"),
		})

		boots := plugin.DefaultBootstraps()
		for _, subject := range viper.GetStringSlice("remoteServers") {
			rd, err := remote.NewDetector(remote.Config{
				Addr:    viper.GetString("msq"),
				Subject: subject,
			})
			if err != nil {
				log.Warn(log.M{Msg: "Cannot load remote plugin server " + subject +
					": " + err.Error()})
				continue
			}
			defer rd.Close()
			boots = append(boots, rd.Bootstrap())
		}

		reg, err := plugin.NewRegistry(boots)
		if err != nil {
			exit("Cannot build plugin registry", err)
		}
		mgr := plugin.NewManager(reg, opts.Include(), opts.Exclude())

		if opts.AdvisoryDumpMode() {
			p := opts.DumpAdvisories
			if !fs.WritableDir(p) {
				exitInvalidArgument(&options.InvalidArgumentError{
					Flag: "dump-advisories", Reason: p + " is not writable"})
			}
			if err := fs.OverwriteFile(vuln.RenderAdvisories(mgr.Advisories()), p); err != nil {
				exit("Cannot write advisories to "+p, err)
			}
			fmt.Println("Advisories written to", p)
			return
		}

		target, err := opts.BuildTarget()
		if err != nil {
			exitInvalidArgument(err)
		}
		for _, e := range target.Info.Endpoints {
			if !e.HasIP() {
				continue
			}
			allowed, err := scope.IsAllowed(e.IPAddress)
			if err != nil {
				exit("Cannot check scan scope for "+e.IPAddress, err)
			}
			if !allowed {
				exit("Refusing to scan", fmt.Errorf("%s is outside the allowed scan scope", e.IPAddress))
			}
		}

		scanID, err := idgen.GenerateID()
		if err != nil {
			exit("Cannot generate scan ID", err)
		}

		fpCache, err := cache.New("fingerprint", viper.GetInt("cacheDuration"), 0)
		if err != nil {
			exit("Cannot initialize fingerprint cache", err)
		}

		executor := exec.New(exec.Config{
			MaxWorkers:              viper.GetInt("maxWorkers"),
			Timeout:                 viper.GetDuration("pluginTimeout"),
			MaxSubmissionsPerSecond: viper.GetInt("maxSubmissionsPerSecond"),
		})

		wf := workflow.New(workflow.Config{
			Manager:          mgr,
			Executor:         executor,
			ScanID:           scanID,
			Deadline:         viper.GetDuration("scanDeadline"),
			DrainGrace:       viper.GetDuration("drainGrace"),
			FingerprintCache: fpCache,
		})

		log.Info(log.M{Msg: "Starting " + progName + " " + version, SID: scanID})
		res := wf.Run(context.Background(), target.Info, target.Services)

		outPath := viper.GetString("out")
		if outPath == "" {
			if err := fs.EnsureDir(logDir); err != nil {
				exit("Cannot create log directory "+logDir, err)
			}
			outPath = path.Join(logDir, resultsFile)
		}
		if err := report.Archive(res, outPath); err != nil {
			log.Warn(log.M{Msg: "Cannot write scan results to " + outPath +
				": " + err.Error(), SID: scanID})
		}

		fmt.Printf("Scan %s finished: %s", scanID, res.Status)
		if res.StatusMessage != "" {
			fmt.Printf(" (%s)", res.StatusMessage)
		}
		fmt.Printf(", %d finding(s), took %s\n", len(res.Findings), res.Duration)

		os.Exit(res.Status.ExitCode())
	},
}
