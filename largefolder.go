// Copyright 2026 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"runtime/pprof"

	"github.com/alecthomas/kingpin/v2"
	"github.com/retailnext/largefolder/hub"
	"github.com/retailnext/largefolder/metrics"
	"github.com/retailnext/largefolder/upload"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func setupLogger() func() {
	var logger *zap.Logger
	var err error
	if term.IsTerminal(int(os.Stdin.Fd())) {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	zap.ReplaceGlobals(logger)

	return func() {
		_ = logger.Sync()
	}
}

func setupInterruptContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case sig := <-c:
			zap.S().Infow("shutting_down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	onExit := func() {
		signal.Stop(c)
		cancel()
	}
	return ctx, onExit
}

func setupProfile() func() {
	if pprofFile == nil || *pprofFile == "" {
		return func() {
		}
	}
	f, err := os.Create(*pprofFile)
	if err != nil {
		panic(err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		panic(err)
	}
	return func() {
		pprof.StopCPUProfile()
		if err := f.Close(); err != nil {
			panic(err)
		}
	}
}

var (
	pprofFile = kingpin.Flag("pprof.cpu.file", "Enable cpu profiling to this file.").String()

	metricsListenAddress = kingpin.Flag("web.listen-address", "Address on which to expose metrics.").String()
	metricsPath          = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
)

func main() {
	kingpin.UsageTemplate(kingpin.CompactUsageTemplate)
	cmd := kingpin.Parse()

	sync := setupLogger()
	defer sync()
	lgr := zap.S()

	ctx, onExit := setupInterruptContext()
	defer onExit()

	stopProfile := setupProfile()
	defer stopProfile()

	metrics.SetupPrometheus(metricsListenAddress, metricsPath)

	switch cmd {
	case "upload":
		opts, cfg, err := upload.FromFlags()
		if err != nil {
			kingpin.Fatalf("%s", err)
		}
		err = upload.Do(ctx, hub.NewHTTPClient(cfg), opts)
		if err == context.Canceled {
			return
		}
		if err != nil {
			lgr.Fatalw("upload_error", "err", err)
		}
	default:
		lgr.Fatalw("unhandled_command", "cmd", cmd)
	}
}
