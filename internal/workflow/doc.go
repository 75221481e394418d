// Package workflow runs the mixsplit pipeline.
//
// The Orchestrator discovers input recordings, estimates their decoded size,
// resolves the memory budget and plans batches. Batches run strictly one at a
// time through the Executor, which performs two phases per batch: the
// Split-Phase decodes, classifies and cuts every file into exported tracks,
// and the Identify/Tag-Phase identifies, tags and places every track in the
// library. Decoded audio, identification samples and the batch's staging
// directory belong to a batch arena that is released on every exit path
// before the next batch starts, which keeps peak memory at one batch's
// estimate.
//
// Per-file and per-track failures are recorded in the batch result and never
// stop the batch. A destination write failure cancels the rest of the batch
// and stops the orchestrator from scheduling further batches. A stop request
// takes effect only between batches.
package workflow
