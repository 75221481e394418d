// Package pcm holds decoded audio as interleaved 16-bit samples and provides
// the amplitude envelope, middle excerpts and WAV encoding the pipeline needs.
package pcm
