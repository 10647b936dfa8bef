/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Command kestreld is a smoke-test binary wiring every collaborator
// package in this module into one running server: config decoding,
// structured logging, the service registry, the static-file handler and
// its filters, and the listener's accept loop. It is not the product this
// module ships (embedders call the packages directly); it exists to prove
// the whole stack actually links and serves a request end to end.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kestreld",
		Short: "Run the kestrel-http engine as a standalone static-file server",
	}
	root.AddCommand(serveCmd())
	return root
}
