// Package ffmpeg runs the ffmpeg invocations behind the video and audio
// activities: sprite sheets, transcodes and waveform peaks.
//
// Every invocation streams ffmpeg's -progress output and records an activity
// heartbeat per progress block, so steps run with a heartbeat window notice a
// stalled encoder without waiting for the attempt deadline.
package ffmpeg
