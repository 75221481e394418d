// Package preflight provides readiness checks for the filesystem paths and
// external binaries a run depends on.
//
// These checks run in two contexts:
//   - The orchestrator calls RunAll before planning. If any check fails the
//     run stops before touching the library.
//   - The CLI "mixsplit deps" command prints the same results.
package preflight
