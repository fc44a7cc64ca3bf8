// Package stages provides the concrete karaoke-track stage handlers.
//
// Order and wiring:
//
//	acquire -> separate -> lyrics -> title -> compose -> finalize -> distribute
//
// Engine-backed stages write into a ".partial" directory inside the track
// directory and promote outputs into place only after the engine exits
// cleanly. An interrupted engine therefore never leaves a file that the stage
// gate would read as finished work.
//
// finalize allocates the brand code with the sequence allocator and files
// copies under the organised directory; distribute reads the code back from
// the brand code file, optionally uploads the organised folder to object
// storage, and announces the track.
package stages
