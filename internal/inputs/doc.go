// Package inputs models discovered recordings and finds them on disk.
package inputs
