/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package main runs didtrust-rest, the HTTP front end of the DID registry.
package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trustbloc/didtrust/cmd/didtrust-rest/startcmd"
)

const binaryName = "didtrust-rest"

func main() {
	rootCmd := &cobra.Command{
		Use:   binaryName,
		Short: "DID registry server",
		Long:  "Anchors self-signed DID documents and public profiles, and serves them to resolvers",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	rootCmd.AddCommand(startcmd.GetStartCmd(&startcmd.HTTPServer{}))

	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Failed to run %s: %s", binaryName, err)
	}
}
