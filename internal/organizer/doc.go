// Package organizer places finished tracks into the artist-organized library.
//
// Identified tracks land at <root>/<artist>/<artist> - <title>.<ext>;
// unidentified ones at <root>/<stem>_Track_<NN>_Unidentified.<ext>. Names are
// compared case-folded and a taken name gets the first free " (N)" suffix, so
// existing files are never replaced. Permission, quota and read-only
// filesystem errors surface as destination write failures, which halt the
// run.
package organizer
