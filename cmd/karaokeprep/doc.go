// Command karaokeprep drives the karaoke-track pipeline.
//
// It runs single tracks end to end, advances CSV batch ledgers through the
// preparation and render phases, and exposes operator utilities for the
// separation lock, brand codes, run history, and environment checks.
package main
