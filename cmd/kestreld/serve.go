/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kestrel-http/engine/chunkfilter"
	"github.com/kestrel-http/engine/config"
	"github.com/kestrel-http/engine/connector"
	"github.com/kestrel-http/engine/content"
	"github.com/kestrel-http/engine/listener"
	"github.com/kestrel-http/engine/nettransport"
	"github.com/kestrel-http/engine/route"
	"github.com/kestrel-http/engine/service"
	"github.com/kestrel-http/engine/upload"
)

func serveCmd() *cobra.Command {
	var (
		addr    string
		root    string
		profile string
		debug   bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory of static files over HTTP/1.1",
		Example: "  kestreld serve --addr :8080 --root ./public",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, root, profile, debug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&root, "root", ".", "directory of files to serve")
	cmd.Flags().StringVar(&profile, "profile", "balanced", "tuning profile: size, balanced, or speed")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	return cmd
}

func runServe(addr, root, profile string, debug bool) error {
	log, err := newLogger(debug)
	if err != nil {
		return fmt.Errorf("kestreld: building logger: %w", err)
	}
	defer log.Sync()

	tuning, err := config.Decode(map[string]interface{}{
		"profile": profile,
		"addr":    addr,
	})
	if err != nil {
		return fmt.Errorf("kestreld: decoding config: %w", err)
	}

	svc, err := service.New(log, tuning.Limits, prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("kestreld: building service: %w", err)
	}

	svc.RegisterStage(content.NewHandler(content.Dir(root)))
	svc.RegisterStage(upload.NewStage())
	svc.RegisterStage(chunkfilter.NewStage())
	svc.RegisterStage(connector.NewStage())

	routes := route.NewTable()
	routes.Handle("/", route.Route{
		Pattern:   "/",
		Handler:   "fileHandler",
		Filters:   []string{"uploadFilter", "chunkFilter"},
		Connector: "sendConnector",
		Methods:   []string{"GET", "HEAD"},
	})

	ln, err := nettransport.Listen(tuning.Addr)
	if err != nil {
		return fmt.Errorf("kestreld: binding %s: %w", tuning.Addr, err)
	}

	lst := listener.New(ln, svc, routes, nettransport.Dispatcher{}, nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		lst.Close()
	}()

	log.Info("kestreld listening", zap.String("addr", tuning.Addr), zap.String("root", root), zap.String("profile", string(tuning.Profile)))
	return lst.Serve()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
