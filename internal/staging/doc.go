// Package staging owns the scratch area where split tracks and identification
// samples live between the split and identify phases.
//
// Each run gets its own directory keyed by run ID with one subdirectory per
// batch. Batch directories are removed when the batch's resources are
// released; CleanStale sweeps run directories left behind by crashed or
// killed runs once they exceed the configured retention.
package staging
