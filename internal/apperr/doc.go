// Package apperr defines shared error sentinels for imapdetect.
// It is a leaf package with no internal imports, so discovery strategies,
// the verifier and the CLI can all wrap and test the same sentinels
// without creating import cycles.
package apperr
