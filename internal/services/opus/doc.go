// Package opus decodes Ogg Opus files in-process with libopusfile, avoiding
// an ffmpeg round trip for the most common streaming-rip container.
package opus
