// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio inputs.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties (codec, sample rate, channels)
//   - Format: container-level metadata (duration, size, bitrate, tags)
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
//
// Helper methods on Result select the primary audio stream and parse the
// duration that drives mix classification.
package ffprobe
