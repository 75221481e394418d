// Package ffmpeg wraps the ffmpeg and ffprobe binaries as the decode and
// encode collaborators of the split pipeline.
//
// Decoder probes an input and pipes it to signed 16-bit PCM held in memory.
// Exporter writes PCM views to FLAC intermediates through ffmpeg's stdin and
// transcodes intermediates into the configured library format.
package ffmpeg
