// Package pipelines defines the activity catalogue: one Registration per
// activity name pairing its parameter variant with the task pipeline that
// produces its result.
//
// A pipeline is a short chain of invoker steps against the staged input.
// Steps that shell out to ffmpeg run with a heartbeat window fed by ffmpeg's
// progress output; AI steps unwrap the model verdict inside the step so a
// rejected answer is retried with a fresh completion.
package pipelines
