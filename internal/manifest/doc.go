// Package manifest writes a JSON record of each run next to the history
// database: every input and output with its sha256, the split parameters
// and per-track identification results. Manifests can be listed and
// compared to see how a re-run changed the library.
package manifest
