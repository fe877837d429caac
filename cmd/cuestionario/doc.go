// Package main hosts the cuestionario CLI entrypoint and command graph.
//
// The Cobra-based command tree starts the experiment HTTP server, runs
// environment preflight checks, inspects participant records and generation
// runs, summarizes collected results, and exports them for analysis. It
// centralizes configuration resolution and structured logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
