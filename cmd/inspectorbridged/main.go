/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"fmt"
	"os"

	"github.com/microsoft/inspectorbridge/pkg/logger"
)

const errCommand = 1

// inspectorbridged is a development daemon: it hosts a bridge with a stub
// engine agent that acknowledges every inspector command, so the transport
// can be exercised against real DevTools-compatible front-ends.
func main() {
	log := logger.New("inspectorbridged").WithSessionSink()

	root := newRootCommand(log)
	err := root.Execute()

	logger.ReleaseAllSessionLogs()
	log.Flush()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errCommand)
	}
}
