// Package services defines shared utilities consumed by the pipeline phases
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, batch indexes, phase names, input
//     files and track ordinals for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the kinds recorded in run reports (decode, identification, tag
//     write, destination write, ...).
//
// Subpackages hold the external tool and network clients (ffmpeg, opus,
// ACRCloud, AcoustID, iTunes) that the pipeline drives as collaborators.
package services
