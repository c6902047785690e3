// Package ffprobe runs ffprobe and flattens its JSON into the fields the
// video-metadata activity reports. Sprite planning reads the duration from
// the same Result.
package ffprobe
