// Package identification matches exported track samples to song metadata.
//
// Provider is the capability every fingerprint backend implements. Select
// builds the configured provider once at construction: a single service, the
// dual-provider merge, the auto fallback chain, the embedded-tag reader, or
// the always-unidentified provider. Providers never pace themselves; callers
// route every call through a shared Throttle so the minimum interval between
// identification requests holds across concurrent workers.
package identification
