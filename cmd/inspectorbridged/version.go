/*---------------------------------------------------------------------------------------------
 *  Copyright (c) Microsoft Corporation. All rights reserved.
 *  Licensed under the MIT License. See LICENSE in the project root for license information.
 *--------------------------------------------------------------------------------------------*/

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
)

const defaultVersion = "dev"

// Overridden at build time via -ldflags.
var (
	Version        = defaultVersion
	CommitHash     = ""
	BuildTimestamp = ""
)

type versionInfo struct {
	Version        string `json:"version"`
	CommitHash     string `json:"commitHash,omitempty"`
	BuildTimestamp string `json:"buildTimestamp,omitempty"`
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			versionStr, err := versionString()
			if err != nil {
				return err
			}
			fmt.Println(versionStr)
			return nil
		},
	}
}

func logVersion(log logr.Logger, programStartMsg string) func(_ *cobra.Command, _ []string) {
	return func(_ *cobra.Command, _ []string) {
		versionStr, err := versionString()
		if err != nil {
			versionStr = fmt.Sprintf("unknown: %v", err)
		}

		launchPath, pathErr := os.Executable()
		if pathErr != nil {
			launchPath = os.Args[0]
		}

		log.V(1).Info(programStartMsg,
			"PID", os.Getpid(),
			"Exe", launchPath,
			"Args", os.Args[1:],
			"Version", versionStr,
		)
	}
}

func versionString() (string, error) {
	serialized, err := json.Marshal(versionInfo{
		Version:        Version,
		CommitHash:     CommitHash,
		BuildTimestamp: BuildTimestamp,
	})
	if err != nil {
		return "", err
	}
	return string(serialized), nil
}
