/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/microsoft/inspectorbridge/internal/bridge"
	"github.com/microsoft/inspectorbridge/internal/inspectorws"
	"github.com/microsoft/inspectorbridge/pkg/logger"
	"github.com/microsoft/inspectorbridge/pkg/osutil"
)

type serveOptions struct {
	host   string
	port   int
	script string
	wait   bool
}

func newRootCommand(log *logger.Logger) *cobra.Command {
	opts := &serveOptions{}

	rootCmd := &cobra.Command{
		Use:          "inspectorbridged",
		Short:        "Hosts an inspector transport bridge with a loopback engine agent",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRun:       logVersion(log.Logger, "inspectorbridged starting"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(log, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.host, "host", osutil.EnvString("IB_HOST", "127.0.0.1"), "Host or IP address to bind the inspector server to.")
	flags.IntVar(&opts.port, "port", osutil.EnvInt("IB_PORT", 9229), "Port to bind the inspector server to (0 selects a free port).")
	flags.StringVar(&opts.script, "script", osutil.EnvString("IB_SCRIPT", ""), "Script path to advertise as the debug target.")
	flags.BoolVar(&opts.wait, "wait-for-debugger", osutil.EnvBool("IB_WAIT_FOR_DEBUGGER"), "Block startup until a front-end sends Runtime.runIfWaitingForDebugger.")
	log.AddLevelFlag(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func serve(log *logger.Logger, opts *serveOptions) error {
	if isAdmin, err := osutil.IsAdmin(); err == nil && isAdmin {
		log.Info("running with elevated privileges")
	}
	started := time.Now()

	agent := newLoopbackAgent(log.Logger)
	defer agent.shutdown()

	b := bridge.New(bridge.Config{
		Host:           opts.host,
		Port:           opts.port,
		ScriptPath:     opts.script,
		WaitForConnect: opts.wait,
	}, agent, inspectorws.Factory(log.Logger), log.Logger)

	if opts.wait {
		log.Info("waiting for a debugger front-end to connect and resume...")
	}

	if !b.Start() {
		log.Error(bridge.ErrBindFailed, "inspector bridge failed to start", "host", opts.host, "port", opts.port)
		return fmt.Errorf("could not bind inspector server to %s:%d: %w", opts.host, opts.port, bridge.ErrBindFailed)
	}

	targetID := b.GetTargetIds()[0]
	log.Info("debugger listening",
		"url", fmt.Sprintf("ws://%s:%d/%s", opts.host, b.Port(), targetID),
		"discovery", fmt.Sprintf("http://%s:%d/json/list", opts.host, b.Port()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down", "uptime", osutil.FormatDuration(time.Since(started)))
	b.Stop()
	return nil
}
