// Package memory estimates decoded working-set sizes for input files and
// derives the per-batch memory budget from the host.
//
// Estimates are byte_size times a fixed per-format expansion factor, so they
// are positive and monotonic in size. The budget is read once per planning
// call; when the host cannot report available memory the budget is marked
// disabled and planning degrades to one file per batch.
package memory
