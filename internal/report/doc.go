// Package report holds the result model of a pipeline run: per-track
// outcomes, per-batch results and the aggregated run report that is
// persisted to the history database and the JSON manifest.
package report
