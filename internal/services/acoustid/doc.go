// Package acoustid fingerprints audio with Chromaprint's fpcalc and looks the
// fingerprint up against the AcoustID web service, returning MusicBrainz
// recording metadata.
package acoustid
