// Copyright 2024 The crescendo Authors
// This file is part of the crescendo library.
//
// The crescendo library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The crescendo library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the crescendo library. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/urfave/cli.v1"

	"github.com/transmissions11/crescendo/internal/config"
	"github.com/transmissions11/crescendo/internal/orchestrator"
	"github.com/transmissions11/crescendo/internal/telemetry"
)

var logger = log.New("component", "main")

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "Path to the base TOML configuration file",
	}
	configOverlayFlag = cli.StringFlag{
		Name:  "config.overlay",
		Usage: "Path to an optional TOML file whose values are merged on top of --config",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Address to serve Prometheus metrics on (empty disables the exporter)",
		Value: ":6060",
	}
)

func main() {
	runtime.GOMAXPROCS(runtime.NumCPU())

	app := cli.NewApp()
	app.Name = "crescendo"
	app.Usage = "multi-core transaction load generator"
	app.Flags = []cli.Flag{configFlag, configOverlayFlag, metricsAddrFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Crit("crescendo exited", "err", err)
	}
}

func run(ctx *cli.Context) error {
	configPath := ctx.String(configFlag.Name)
	if configPath == "" {
		return cli.NewExitError("crescendo: --config is required", 1)
	}

	cfg, err := config.Load(configPath, ctx.String(configOverlayFlag.Name))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if addr := ctx.String(metricsAddrFlag.Name); addr != "" {
		telemetry.ServePrometheus(addr)
		logger.Info("metrics exporter listening", "url", telemetry.FormatTarget(addr))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigc)
		<-sigc
		logger.Info("received interrupt, shutting down")
		cancel()
	}()

	if err := orchestrator.Run(runCtx, cfg); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
