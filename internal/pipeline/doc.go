// Package pipeline runs an ordered list of stages for one track.
//
// Each stage is gated on its declared outputs: when every output already
// exists and is non-empty the stage is Skipped, so rerunning a track only
// does the work that is missing. A stage whose dependency Failed in the same
// run is itself Failed with services.ErrUpstreamFailure and never invoked;
// independent stages keep running. Stages that implement stage.Exclusive hold
// a resourcelock lock around Execute.
//
// Dry runs resolve every stage to Skipped or Planned without creating
// directories, taking locks, or invoking collaborators. Force bypasses the
// gate for one run.
package pipeline
