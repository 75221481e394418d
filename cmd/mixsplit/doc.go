// Package main hosts the mixsplit CLI entrypoint and command graph.
//
// The Cobra command tree wraps the internal pipeline: run and plan drive the
// workflow orchestrator over an input directory, while history, manifest,
// staging, deps, config and notify expose the supporting stores and checks.
// Configuration resolution and logger construction live in the shared
// command context so subcommands only deal with presentation.
package main
