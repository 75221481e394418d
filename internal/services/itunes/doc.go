// Package itunes queries the iTunes Search API for song metadata and
// album artwork.
package itunes
