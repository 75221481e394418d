// Package acrcloud implements a client for the ACRCloud audio recognition
// identify endpoint.
//
// Requests are signed with HMAC-SHA1 over the canonical string
// "POST\n/v1/identify\n<access key>\naudio\n1\n<timestamp>" and carry the
// sample as a multipart upload. Status code 0 is a match and 1001 is an
// authoritative "no result"; every other code is returned as an error.
package acrcloud
