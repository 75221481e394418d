// Package batching partitions estimated input files into memory-bounded
// batches.
//
// Packing is greedy and order preserving: files are consumed in discovery
// order and a new batch starts when the next file would exceed the budget.
// Plans are therefore reproducible for the same inputs and budget, and every
// file appears in exactly one batch. A file larger than the budget forms its
// own flagged batch; a file is never split across batches.
package batching
