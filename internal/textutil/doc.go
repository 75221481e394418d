// Package textutil normalizes text used in library paths.
//
// Names are NFC-normalized before sanitizing so visually identical artists
// land in one directory, and FoldKey gives the case-folded comparison key the
// organizer uses for collisions and skip-existing lookups.
package textutil
