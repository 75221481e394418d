// Package segment classifies recordings as single tracks or mixes and splits
// mixes into tracks at silence gaps.
//
// Classification is a pure duration threshold. Splitting works on the RMS
// envelope of decoded PCM with levels measured relative to the recording's
// loudest window, so quiet masters split the same way as loud ones. Segments
// are ordered, non-overlapping and, together with the trimmed gaps, tile the
// recording exactly.
package segment
