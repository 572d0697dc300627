// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"thermod/internal/config"
	"thermod/internal/control"
	"thermod/internal/timetable"
	"thermod/pkg/appctx"
	"thermod/pkg/eventbus"
	"thermod/pkg/logger"
	"thermod/pkg/rootserv"
	"thermod/pkg/service"
	"thermod/pkg/sysmon"
)

// version is the value reported by GET /version and `thermod version`;
// overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// Exit codes, per spec.md §6.
const (
	exitOK                = 0
	exitDisabledByConfig  = 6
	exitConfigError       = 10
	exitInitError         = 20
	exitSocketError       = 30
	exitExternalSystem    = 40
	exitOtherRuntime      = 50
	exitShutdownError     = 60
	exitKeyboardInterrupt = 130
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "thermod",
	Short: "Programmable thermostat daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Exit(runDaemon())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "thermod.yaml", "path to the daemon config file")
	rootCmd.AddCommand(checkConfigCmd, versionCmd)
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate the daemon config and timetable without starting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		os.Exit(runCheckConfig())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the daemon version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func runCheckConfig() int {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}
	if cfg.TimetablePath == "" {
		fmt.Fprintln(os.Stderr, "config error: timetable_path is empty")
		return exitConfigError
	}
	if err := timetable.New(cfg.TimetablePath, nil, nil).Load(); err != nil {
		fmt.Fprintf(os.Stderr, "timetable error: %v\n", err)
		return exitConfigError
	}
	fmt.Println("config ok")
	return exitOK
}

func runDaemon() int {
	logger.Init(filepath.Join(filepath.Dir(configPath), "thermod.log"))

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfigError
	}
	if !cfg.Enabled {
		fmt.Fprintln(os.Stderr, "thermod disabled by config (enabled: false)")
		return exitDisabledByConfig
	}
	if cfg.Debug {
		logger.EnableDebug(true)
	}

	cfg.EventBus = eventbus.New()
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}

	// appctx handles SIGINT/SIGTERM (cancel ctx) and SIGHUP/SIGUSR1 (the
	// reload/debug-toggle signals forwarded to the control cycle).
	// Tracked separately below so a true SIGINT reports exit 130 rather
	// than the generic shutdown path SIGTERM takes.
	sawSigint := make(chan struct{}, 1)
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT)
	go func() {
		<-sigint
		select {
		case sawSigint <- struct{}{}:
		default:
		}
	}()

	ctx, cancel, sig := appctx.New()
	defer cancel()

	daemon, err := control.Build(ctx, cfg, version, sig.Reload, sig.ToggleDebug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		return exitInitError
	}

	addr := fmt.Sprintf("%s:%d", cfg.Socket.Host, cfg.Socket.Port)
	server := rootserv.New(addr)
	server.Attach("/", "Control Socket", daemon.Socket.Handler())
	server.Attach("/sysmon", "System Monitor", sysmon.New(cfg.DataDir))
	server.Attach("/logger", "Logger", logger.WebService())

	exitCh := service.Start(ctx, cancel, []service.Runnable{
		daemon.Pipe.Averaging,
		daemon.Cycle,
		server,
	})

	code := <-exitCh

	select {
	case <-sawSigint:
		return exitKeyboardInterrupt
	default:
	}

	if code != 0 {
		return exitOtherRuntime
	}
	return exitOK
}
