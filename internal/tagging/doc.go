// Package tagging writes metadata and cover art into library track files.
//
// FLAC files get a fresh Vorbis comment and front-cover picture block through
// go-flac; MP3 files get ID3v2.4 frames through id3v2. Fetcher resolves cover
// art from the provider URL, the iTunes catalogue, or the og:image of the
// catalogue page. NormalizeArtist folds collaboration credits into the title
// so one primary artist owns each library folder.
package tagging
