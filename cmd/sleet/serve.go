package main

import (
	"fmt"
	"log/slog"

	"github.com/sleetrun/sleet/pkg/api"
	"github.com/sleetrun/sleet/pkg/backpressure"
	"github.com/sleetrun/sleet/pkg/orchestration"
	"github.com/sleetrun/sleet/pkg/runconfig"
	"github.com/sleetrun/sleet/pkg/runtime"
)

// defaultFlowGasLimit bounds a single registered flow's VM execution,
// independent of any per-block gas the flow's own bytecode budgets for.
const defaultFlowGasLimit = 1_000_000

// runServe boots the §6.1 HTTP admission surface: a gin server fronting
// the orchestration scheduler's resource manager and the backpressure
// controller, as spec §6.5's bin/demos/flows-demo family does over a
// local in-process API instead of a remote one.
func runServe(cfg *runconfig.Config, _ []string) int {
	resources := orchestration.NewResourceManager(orchestration.DefaultSessionLimits())
	bp := backpressure.NewWindow(cfg.Backpressure, nil)
	ffi := runtime.NewFfiRegistry()

	server := api.NewServer(resources, bp, ffi, defaultFlowGasLimit)

	slog.Info("serve: listening", "addr", cfg.HTTPAddr)
	if err := server.Start(cfg.HTTPAddr); err != nil {
		fmt.Printf("serve: %v\n", err)
		return exitRuntimeFailure
	}
	return exitSuccess
}
